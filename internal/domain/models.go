package domain

import (
	"fmt"
	"time"
)

// QuizState tracks the lifecycle of the hosted quiz session.
type QuizState string

const (
	// StateIdle means no quiz is running; participants cannot join.
	StateIdle QuizState = "idle"
	// StateRunning means the admin has started the quiz.
	StateRunning QuizState = "running"
)

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
// The source format does not enforce the invariant; scoring uses the
// first option flagged correct.
type Question struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Difficulty string   `json:"difficulty"`
	Options    []Option `json:"options"`
}

// CorrectOptionID returns the ID of the first option flagged correct,
// or empty when none is flagged.
func (q Question) CorrectOptionID() string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.ID
		}
	}
	return ""
}

// Bank is the parsed question bank loaded from an uploaded file.
type Bank struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// OptionCount sums options across all questions.
func (b Bank) OptionCount() int {
	n := 0
	for _, q := range b.Questions {
		n += len(q.Options)
	}
	return n
}

// Question looks up a question by ID.
func (b Bank) Question(id string) (Question, bool) {
	for _, q := range b.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// QuizConfig is set once by the admin before start and read-only while running.
type QuizConfig struct {
	Title        string        `json:"title"`
	NumQuestions int           `json:"numQuestions"`
	Duration     time.Duration `json:"duration"`
}

// DefaultConfig mirrors the platform defaults: 10 questions in 15 minutes.
func DefaultConfig() QuizConfig {
	return QuizConfig{
		Title:        "WARP Quiz",
		NumQuestions: 10,
		Duration:     15 * time.Minute,
	}
}

// LeaderboardEntry is the recorded outcome of one participant.
type LeaderboardEntry struct {
	Name       string        `json:"name"`
	Score      int           `json:"score"`
	Total      int           `json:"total"`
	Elapsed    time.Duration `json:"elapsed"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// Leaderboard captures the ordered scoreboard for the current session.
type Leaderboard struct {
	Title     string             `json:"title"`
	State     QuizState          `json:"state"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// FormatElapsed renders a duration as H:MM:SS for leaderboard display
// and CSV export.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}
