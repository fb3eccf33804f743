package http

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"warp-quiz-server/internal/app"
	"warp-quiz-server/internal/domain"
	"warp-quiz-server/internal/quizfile"
)

// BankArchiver persists uploaded banks; nil when no archive is configured.
type BankArchiver interface {
	SaveBank(ctx context.Context, bank domain.Bank) error
}

// AdminHandler serves the dashboard endpoints.
type AdminHandler struct {
	svc     *app.QuizService
	archive BankArchiver
	logger  *zap.Logger
}

func NewAdminHandler(svc *app.QuizService, archive BankArchiver, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{svc: svc, archive: archive, logger: logger}
}

// UploadBank parses a multipart quiz file and installs it as the bank.
func (h *AdminHandler) UploadBank(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "quiz file required in field 'file'")
		return
	}
	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "open upload: "+err.Error())
		return
	}
	defer src.Close()

	bank, err := quizfile.Parse(src)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	bank.ID = uuid.New().String()

	if err := h.svc.SetBank(bank); err != nil {
		respondDomainError(c, err)
		return
	}
	if h.archive != nil {
		if err := h.archive.SaveBank(c.Request.Context(), bank); err != nil {
			h.logger.Warn("archive bank", zap.String("bankId", bank.ID), zap.Error(err))
		}
	}
	h.logger.Info("bank uploaded",
		zap.String("bankId", bank.ID),
		zap.String("filename", file.Filename),
		zap.Int("questions", len(bank.Questions)),
	)

	summary, err := h.svc.Summary()
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondCreated(c, summary)
}

// Bank reports the loaded bank's counts.
func (h *AdminHandler) Bank(c *gin.Context) {
	summary, err := h.svc.Summary()
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, summary)
}

// RemoveBank drops the bank and forces the session idle.
func (h *AdminHandler) RemoveBank(c *gin.Context) {
	if err := h.svc.RemoveBank(c.Request.Context()); err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{"removed": true})
}

type configRequest struct {
	Title           string `json:"title"`
	Questions       int    `json:"questions" binding:"required"`
	DurationMinutes int    `json:"durationMinutes" binding:"required"`
}

type configResponse struct {
	Title           string `json:"title"`
	Questions       int    `json:"questions"`
	DurationMinutes int    `json:"durationMinutes"`
}

// UpdateConfig stores quiz parameters; rejected while the quiz runs.
func (h *AdminHandler) UpdateConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "questions and durationMinutes required")
		return
	}
	cfg := domain.QuizConfig{
		Title:        req.Title,
		NumQuestions: req.Questions,
		Duration:     time.Duration(req.DurationMinutes) * time.Minute,
	}
	if err := h.svc.Configure(cfg); err != nil {
		respondDomainError(c, err)
		return
	}
	saved := h.svc.Config()
	respondOK(c, configResponse{
		Title:           saved.Title,
		Questions:       saved.NumQuestions,
		DurationMinutes: int(saved.Duration / time.Minute),
	})
}

// Start opens the quiz for participants.
func (h *AdminHandler) Start(c *gin.Context) {
	if err := h.svc.Start(c.Request.Context()); err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, h.svc.Status())
}

// Reset clears the leaderboard and evicts all participants.
func (h *AdminHandler) Reset(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context()); err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, h.svc.Status())
}

// Leaderboard returns the ranked scoreboard.
func (h *AdminHandler) Leaderboard(c *gin.Context) {
	lb, err := h.svc.Leaderboard(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, leaderboardView(lb))
}

// ExportLeaderboard streams the scoreboard as CSV.
func (h *AdminHandler) ExportLeaderboard(c *gin.Context) {
	lb, err := h.svc.Leaderboard(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	filename := fmt.Sprintf("warp_leaderboard_%s.csv", time.Now().Format("20060102_1504"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"participant", "score", "total", "time_taken", "finished_at"})
	for _, entry := range lb.Entries {
		_ = w.Write([]string{
			entry.Name,
			strconv.Itoa(entry.Score),
			strconv.Itoa(entry.Total),
			domain.FormatElapsed(entry.Elapsed),
			entry.FinishedAt.Format("2006-01-02 15:04:05"),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.logger.Warn("write leaderboard csv", zap.Error(err))
	}
}

// Status reports the participant-visible session state.
func (h *AdminHandler) Status(c *gin.Context) {
	respondOK(c, h.svc.Status())
}
