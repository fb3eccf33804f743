package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"warp-quiz-server/internal/app"
	"warp-quiz-server/internal/domain"
)

// WSHandler wires participant websockets into the quiz use cases.
type WSHandler struct {
	svc      *app.QuizService
	tokens   *TokenService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(svc *app.QuizService, tokens *TokenService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		svc:    svc,
		tokens: tokens,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// outbound carries one frame to the writer goroutine. closeConn tells the
// writer to close the connection after the frame is on the wire; only the
// writer may close it, so a queued frame is never lost to the close.
type outbound struct {
	frame     outboundMessage[any]
	closeConn bool
}

func frame(msgType string, payload any) outbound {
	return outbound{frame: outboundMessage[any]{Type: msgType, Payload: payload}}
}

type errorPayload struct {
	Message string `json:"message"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

// optionView deliberately omits the correctness flag.
type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID         string       `json:"id"`
	Text       string       `json:"text"`
	Difficulty string       `json:"difficulty"`
	Options    []optionView `json:"options"`
}

type joinedView struct {
	Title           string         `json:"title"`
	Total           int            `json:"total"`
	DurationSeconds int            `json:"durationSeconds"`
	Deadline        time.Time      `json:"deadline"`
	Questions       []questionView `json:"questions"`
}

type progressView struct {
	Answered         int `json:"answered"`
	Total            int `json:"total"`
	RemainingSeconds int `json:"remainingSeconds"`
}

type resultView struct {
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	TimeTaken  string    `json:"timeTaken"`
	FinishedAt time.Time `json:"finishedAt"`
	TimedOut   bool      `json:"timedOut,omitempty"`
}

type leaderboardEntryView struct {
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	TimeTaken  string    `json:"timeTaken"`
	FinishedAt time.Time `json:"finishedAt"`
}

type leaderboardPayload struct {
	Title     string                 `json:"title"`
	State     domain.QuizState       `json:"state"`
	Entries   []leaderboardEntryView `json:"entries"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

func leaderboardView(lb domain.Leaderboard) leaderboardPayload {
	entries := make([]leaderboardEntryView, 0, len(lb.Entries))
	for _, e := range lb.Entries {
		entries = append(entries, leaderboardEntryView{
			Name:       e.Name,
			Score:      e.Score,
			Total:      e.Total,
			TimeTaken:  domain.FormatElapsed(e.Elapsed),
			FinishedAt: e.FinishedAt,
		})
	}
	return leaderboardPayload{
		Title:     lb.Title,
		State:     lb.State,
		Entries:   entries,
		UpdatedAt: lb.UpdatedAt,
	}
}

func questionViews(questions []domain.Question) []questionView {
	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		opts := make([]optionView, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, optionView{ID: o.ID, Text: o.Text})
		}
		views = append(views, questionView{
			ID:         q.ID,
			Text:       q.Text,
			Difficulty: q.Difficulty,
			Options:    opts,
		})
	}
	return views
}

func resultFromEntry(entry domain.LeaderboardEntry, timedOut bool) resultView {
	return resultView{
		Name:       entry.Name,
		Score:      entry.Score,
		Total:      entry.Total,
		TimeTaken:  domain.FormatElapsed(entry.Elapsed),
		FinishedAt: entry.FinishedAt,
		TimedOut:   timedOut,
	}
}

// ServeWS upgrades participant connections and runs the quiz protocol:
// joined → answer*/submit → result, with leaderboard pushes throughout.
func (h *WSHandler) ServeWS(c *gin.Context) {
	name := c.Query("name")
	token := c.Query("token")
	if name == "" || token == "" {
		respondError(c, http.StatusBadRequest, "name and token required")
		return
	}
	claims, err := h.tokens.Validate(token)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if claims.Role != RoleParticipant {
		respondError(c, http.StatusForbidden, "participant token required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	joined, err := h.svc.Join(ctx, name)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.svc.Subscribe(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.svc.Leave(name)

	send := make(chan outbound, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		// Drain any frames queued after this goroutine stops writing so
		// the read loop can never block on a full send channel.
		defer func() {
			for range send {
			}
		}()
		for out := range send {
			if err := conn.WriteJSON(out.frame); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
			if out.closeConn {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "quiz reset"))
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					// Channel closed by admin reset: evict this participant.
					// The writer closes the connection once the frame is out.
					evict := frame("evicted", errorPayload{Message: "quiz was reset by the admin"})
					evict.closeConn = true
					select {
					case send <- evict:
					case <-closeSignals:
					}
					return
				}
				select {
				case send <- frame("leaderboard", leaderboardView(update)):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- frame("joined", joinedView{
		Title:           joined.Title,
		Total:           joined.Total,
		DurationSeconds: int(joined.Duration.Seconds()),
		Deadline:        joined.Deadline,
		Questions:       questionViews(joined.Questions),
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- frame("error", errorPayload{Message: "invalid answer payload"})
				continue
			}
			progress, err := h.svc.Answer(ctx, name, payload.QuestionID, payload.OptionID)
			if errors.Is(err, domain.ErrTimeExpired) {
				entry, serr := h.svc.Submit(ctx, name)
				if serr == nil {
					send <- frame("result", resultFromEntry(entry, true))
				}
				continue
			}
			if err != nil {
				send <- frame("error", errorPayload{Message: err.Error()})
				continue
			}
			send <- frame("answerAck", progressView{
				Answered:         progress.Answered,
				Total:            progress.Total,
				RemainingSeconds: int(progress.Remaining.Seconds()),
			})
		case "submit":
			entry, err := h.svc.Submit(ctx, name)
			if err != nil {
				send <- frame("error", errorPayload{Message: err.Error()})
				continue
			}
			send <- frame("result", resultFromEntry(entry, false))
		default:
			send <- frame("error", errorPayload{Message: "unsupported message type"})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
