package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"famcoord/internal/mq"
	"famcoord/internal/repository"
	"famcoord/pkg/trace"
)

type PatternHandler struct {
	patternRepo *repository.PatternRepository
	producer    *mq.Producer
	logger      *zap.Logger
}

func NewPatternHandler(patternRepo *repository.PatternRepository, producer *mq.Producer, logger *zap.Logger) *PatternHandler {
	return &PatternHandler{
		patternRepo: patternRepo,
		producer:    producer,
		logger:      logger,
	}
}

type discoverRequest struct {
	LookbackDays int `json:"lookback_days"`
}

// Discover handles POST /patterns/discover. The run itself happens on the
// worker; the response only acknowledges the request.
func (h *PatternHandler) Discover(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.LookbackDays < 0 || req.LookbackDays > 365 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lookback_days must be between 1 and 365, or omitted for the default"})
		return
	}

	payload := mq.PatternsRequestedPayload{
		UserID:       userID,
		AccountID:    userID,
		LookbackDays: req.LookbackDays,
		TraceID:      trace.FromContext(c.Request.Context()),
	}
	if err := h.producer.Publish(mq.RoutingPatternsRequested, payload); err != nil {
		h.logger.Error("Failed to publish patterns.requested",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue discovery"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// ListPatterns handles GET /patterns
func (h *PatternHandler) ListPatterns(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	patterns, err := h.patternRepo.ListForAccount(c.Request.Context(), userID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch patterns"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patterns": patterns,
	})
}
