package app

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"warp-quiz-server/internal/domain"
)

// ResultStore abstracts how finished results are kept (in-memory, Redis).
type ResultStore interface {
	Record(ctx context.Context, entry domain.LeaderboardEntry) error
	List(ctx context.Context) ([]domain.LeaderboardEntry, error)
	Clear(ctx context.Context) error
}

// BankRepository loads archived question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.Bank, error)
}

const maxDuration = 2 * time.Hour

// QuizService owns the single hosted quiz: the uploaded bank, the admin
// config, and every participant's live state. All mutation goes through
// the mutex; leaderboard updates fan out to subscriber channels.
type QuizService struct {
	logger  *zap.Logger
	results ResultStore
	now     func() time.Time

	mu           sync.RWMutex
	rnd          *rand.Rand
	bank         *domain.Bank
	cfg          domain.QuizConfig
	state        domain.QuizState
	startedAt    time.Time
	master       []string
	participants map[string]*participant
	subscribers  map[chan domain.Leaderboard]struct{}
}

type participant struct {
	name      string
	joinedAt  time.Time
	deadline  time.Time
	questions []domain.Question
	answers   map[string]string
	timer     *time.Timer
	finished  bool
	entry     domain.LeaderboardEntry
}

// BankSummary describes the loaded bank for the admin view.
type BankSummary struct {
	ID        string `json:"id"`
	Questions int    `json:"questions"`
	Options   int    `json:"options"`
}

// Status is the participant-visible view of the session. StartedAt is nil
// while idle so the field is omitted from JSON instead of rendering the
// zero time.
type Status struct {
	State      domain.QuizState `json:"state"`
	Title      string           `json:"title"`
	Questions  int              `json:"questions"`
	Duration   time.Duration    `json:"duration"`
	BankLoaded bool             `json:"bankLoaded"`
	StartedAt  *time.Time       `json:"startedAt,omitempty"`
}

// JoinedQuiz is handed to a participant at join time. Questions carry the
// participant's personal ordering; correctness flags must be stripped
// before leaving the server.
type JoinedQuiz struct {
	Title     string
	Total     int
	Duration  time.Duration
	Deadline  time.Time
	Questions []domain.Question
}

// Progress acknowledges a recorded answer.
type Progress struct {
	Answered  int           `json:"answered"`
	Total     int           `json:"total"`
	Remaining time.Duration `json:"remaining"`
}

func NewQuizService(results ResultStore, logger *zap.Logger) *QuizService {
	return NewQuizServiceWithClock(results, logger, time.Now)
}

// NewQuizServiceWithClock allows deterministic timestamps in tests.
func NewQuizServiceWithClock(results ResultStore, logger *zap.Logger, now func() time.Time) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		logger:       logger,
		results:      results,
		now:          now,
		rnd:          rand.New(rand.NewSource(now().UnixNano())),
		cfg:          domain.DefaultConfig(),
		state:        domain.StateIdle,
		participants: make(map[string]*participant),
		subscribers:  make(map[chan domain.Leaderboard]struct{}),
	}
}

// SetBank installs an uploaded question bank. Rejected while a session runs.
func (s *QuizService) SetBank(bank domain.Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateRunning {
		return domain.ErrQuizActive
	}
	if len(bank.Questions) == 0 {
		return domain.ErrBankNotLoaded
	}
	s.bank = &bank
	return nil
}

// RemoveBank drops the bank and forces the session back to idle.
func (s *QuizService) RemoveBank(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(ctx)
	s.bank = nil
	return nil
}

// Summary reports counts for the loaded bank.
func (s *QuizService) Summary() (BankSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bank == nil {
		return BankSummary{}, domain.ErrBankNotLoaded
	}
	return BankSummary{
		ID:        s.bank.ID,
		Questions: len(s.bank.Questions),
		Options:   s.bank.OptionCount(),
	}, nil
}

// Configure validates and stores quiz parameters. Read-only while running.
func (s *QuizService) Configure(cfg domain.QuizConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateRunning {
		return domain.ErrQuizActive
	}
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = domain.DefaultConfig().Title
	}
	if cfg.NumQuestions < 1 {
		return fmt.Errorf("number of questions must be at least 1, got %d", cfg.NumQuestions)
	}
	if s.bank != nil && cfg.NumQuestions > len(s.bank.Questions) {
		return fmt.Errorf("number of questions %d exceeds bank size %d", cfg.NumQuestions, len(s.bank.Questions))
	}
	if cfg.Duration < time.Minute || cfg.Duration > maxDuration {
		return fmt.Errorf("duration must be between 1m and %s, got %s", maxDuration, cfg.Duration)
	}
	s.cfg = cfg
	return nil
}

// Config returns the current quiz parameters.
func (s *QuizService) Config() domain.QuizConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Status reports the participant-visible session state.
func (s *QuizService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	questions := s.cfg.NumQuestions
	if s.state == domain.StateRunning {
		questions = len(s.master)
	}
	st := Status{
		State:      s.state,
		Title:      s.cfg.Title,
		Questions:  questions,
		Duration:   s.cfg.Duration,
		BankLoaded: s.bank != nil,
	}
	if !s.startedAt.IsZero() {
		startedAt := s.startedAt
		st.StartedAt = &startedAt
	}
	return st
}

// Start samples the session's master question set, clears the previous
// leaderboard, and opens the quiz for joins.
func (s *QuizService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateRunning {
		return domain.ErrQuizActive
	}
	if s.bank == nil {
		return domain.ErrBankNotLoaded
	}

	s.resetLocked(ctx)

	n := s.cfg.NumQuestions
	if n > len(s.bank.Questions) {
		n = len(s.bank.Questions)
	}
	s.master = make([]string, 0, n)
	for _, i := range s.rnd.Perm(len(s.bank.Questions))[:n] {
		s.master = append(s.master, s.bank.Questions[i].ID)
	}

	s.state = domain.StateRunning
	s.startedAt = s.now()
	s.logger.Info("quiz started",
		zap.String("title", s.cfg.Title),
		zap.Int("questions", n),
		zap.Duration("duration", s.cfg.Duration),
	)
	return nil
}

// Reset clears the leaderboard and evicts every participant.
func (s *QuizService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(ctx)
	s.logger.Info("quiz reset")
	return nil
}

// resetLocked tears down session state. Closing subscriber channels is the
// eviction signal for connected participants.
func (s *QuizService) resetLocked(ctx context.Context) {
	s.state = domain.StateIdle
	s.startedAt = time.Time{}
	s.master = nil
	for _, p := range s.participants {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	s.participants = make(map[string]*participant)
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan domain.Leaderboard]struct{})
	if err := s.results.Clear(ctx); err != nil {
		s.logger.Warn("clear results", zap.Error(err))
	}
}

// Join registers a participant, deals their personal shuffle of the master
// set, and starts their countdown.
func (s *QuizService) Join(ctx context.Context, name string) (JoinedQuiz, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return JoinedQuiz{}, fmt.Errorf("participant name required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateRunning {
		return JoinedQuiz{}, domain.ErrQuizNotActive
	}
	if _, ok := s.participants[name]; ok {
		return JoinedQuiz{}, domain.ErrNameTaken
	}

	questions := make([]domain.Question, 0, len(s.master))
	for _, id := range s.master {
		q, ok := s.bank.Question(id)
		if !ok {
			continue
		}
		opts := make([]domain.Option, len(q.Options))
		copy(opts, q.Options)
		s.rnd.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
		q.Options = opts
		questions = append(questions, q)
	}
	s.rnd.Shuffle(len(questions), func(i, j int) { questions[i], questions[j] = questions[j], questions[i] })

	now := s.now()
	p := &participant{
		name:      name,
		joinedAt:  now,
		deadline:  now.Add(s.cfg.Duration),
		questions: questions,
		answers:   make(map[string]string),
	}
	p.timer = time.AfterFunc(s.cfg.Duration, func() { s.expire(name) })
	s.participants[name] = p

	s.logger.Info("participant joined", zap.String("name", name), zap.Int("questions", len(questions)))
	return JoinedQuiz{
		Title:     s.cfg.Title,
		Total:     len(questions),
		Duration:  s.cfg.Duration,
		Deadline:  p.deadline,
		Questions: questions,
	}, nil
}

// Answer records (or overwrites) a participant's choice for one question.
// Past the deadline the quiz is auto-submitted and ErrTimeExpired returned.
func (s *QuizService) Answer(ctx context.Context, name, questionID, optionID string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[name]
	if !ok {
		return Progress{}, domain.ErrParticipantNotFound
	}
	if p.finished {
		return Progress{}, domain.ErrAlreadyFinished
	}

	now := s.now()
	if now.After(p.deadline) {
		s.finalizeLocked(ctx, p, true)
		return Progress{}, domain.ErrTimeExpired
	}

	var question *domain.Question
	for i := range p.questions {
		if p.questions[i].ID == questionID {
			question = &p.questions[i]
			break
		}
	}
	if question == nil {
		return Progress{}, domain.ErrQuestionNotFound
	}
	found := false
	for _, opt := range question.Options {
		if opt.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return Progress{}, domain.ErrOptionNotFound
	}

	p.answers[questionID] = optionID
	return Progress{
		Answered:  len(p.answers),
		Total:     len(p.questions),
		Remaining: p.deadline.Sub(now),
	}, nil
}

// Submit finalizes a participant's quiz. Submitting twice returns the
// recorded entry unchanged.
func (s *QuizService) Submit(ctx context.Context, name string) (domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[name]
	if !ok {
		return domain.LeaderboardEntry{}, domain.ErrParticipantNotFound
	}
	if p.finished {
		return p.entry, nil
	}
	s.finalizeLocked(ctx, p, s.now().After(p.deadline))
	return p.entry, nil
}

// Leave drops an unfinished participant so the name can rejoin; finished
// participants stay recorded.
func (s *QuizService) Leave(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[name]
	if !ok || p.finished {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(s.participants, name)
	s.logger.Info("participant left", zap.String("name", name))
}

// expire is the countdown callback; lazy checks in Answer/Submit make it
// idempotent with manual submission.
func (s *QuizService) expire(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[name]
	if !ok || p.finished {
		return
	}
	s.finalizeLocked(context.Background(), p, true)
}

func (s *QuizService) finalizeLocked(ctx context.Context, p *participant, timedOut bool) {
	p.finished = true
	if p.timer != nil {
		p.timer.Stop()
	}

	score := 0
	for _, q := range p.questions {
		chosen, ok := p.answers[q.ID]
		if !ok {
			continue
		}
		if correct := q.CorrectOptionID(); correct != "" && chosen == correct {
			score++
		}
	}

	now := s.now()
	elapsed := now.Sub(p.joinedAt)
	if timedOut || elapsed > s.cfg.Duration {
		elapsed = s.cfg.Duration
	}
	if elapsed < 0 {
		elapsed = 0
	}

	p.entry = domain.LeaderboardEntry{
		Name:       p.name,
		Score:      score,
		Total:      len(p.questions),
		Elapsed:    elapsed,
		FinishedAt: now,
	}
	if err := s.results.Record(ctx, p.entry); err != nil {
		s.logger.Warn("record result", zap.String("name", p.name), zap.Error(err))
	}
	s.logger.Info("participant finished",
		zap.String("name", p.name),
		zap.Int("score", score),
		zap.Int("total", len(p.questions)),
		zap.Bool("timedOut", timedOut),
	)
	s.broadcastLocked(ctx)
}

// Leaderboard returns the ranked scoreboard.
func (s *QuizService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(ctx)
}

// Subscribe returns a channel receiving leaderboard updates while the quiz
// runs. The channel is closed on reset; callers must invoke cancel to
// avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	s.mu.Lock()
	if s.state != domain.StateRunning {
		s.mu.Unlock()
		return nil, nil, domain.ErrQuizNotActive
	}
	ch := make(chan domain.Leaderboard, 8)
	s.subscribers[ch] = struct{}{}
	// The initial snapshot must go out while the lock is held: a concurrent
	// reset closes every registered channel, so an unlocked send would race
	// the close. The fresh buffered channel cannot block here.
	if initial, err := s.snapshotLocked(ctx); err != nil {
		s.logger.Warn("initial snapshot", zap.Error(err))
	} else {
		ch <- initial
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *QuizService) broadcastLocked(ctx context.Context) {
	lb, err := s.snapshotLocked(ctx)
	if err != nil {
		s.logger.Warn("leaderboard snapshot", zap.Error(err))
		return
	}
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale update so a slow reader never blocks broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

func (s *QuizService) snapshotLocked(ctx context.Context) (domain.Leaderboard, error) {
	entries, err := s.results.List(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list results: %w", err)
	}
	sortEntries(entries)
	return domain.Leaderboard{
		Title:     s.cfg.Title,
		State:     s.state,
		Entries:   entries,
		UpdatedAt: s.now(),
	}, nil
}

// sortEntries ranks by score desc, then faster finishers, then name.
func sortEntries(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Elapsed != entries[j].Elapsed {
			return entries[i].Elapsed < entries[j].Elapsed
		}
		return entries[i].Name < entries[j].Name
	})
}
