package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"famcoord/internal/repository"
)

const defaultEmailListLimit = 50

type EmailHandler struct {
	emailRepo *repository.AnalyzedEmailRepository
}

func NewEmailHandler(emailRepo *repository.AnalyzedEmailRepository) *EmailHandler {
	return &EmailHandler{emailRepo: emailRepo}
}

// ListEmails handles GET /emails
func (h *EmailHandler) ListEmails(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit := defaultEmailListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	emails, err := h.emailRepo.ListByAccount(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch emails"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"emails": emails,
	})
}
