package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"warp-quiz-server/internal/domain"
	"warp-quiz-server/internal/quizfile"
)

// body is the standard API response envelope.
type body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, body{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, body{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, body{Success: false, Error: msg})
}

// respondDomainError maps service and parser errors onto HTTP statuses.
func respondDomainError(c *gin.Context, err error) {
	var missing *quizfile.MissingHeaderError
	switch {
	case errors.Is(err, domain.ErrBankNotLoaded),
		errors.Is(err, domain.ErrBankNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrQuizActive),
		errors.Is(err, domain.ErrQuizNotActive),
		errors.Is(err, domain.ErrNameTaken),
		errors.Is(err, domain.ErrAlreadyFinished):
		respondError(c, http.StatusConflict, err.Error())
	case errors.As(err, &missing),
		errors.Is(err, quizfile.ErrNoRows),
		errors.Is(err, quizfile.ErrColumnCount),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}
