package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"famcoord/internal/model"
	"famcoord/internal/mq"
	"famcoord/internal/repository"
	"famcoord/pkg/trace"
)

type JobHandler struct {
	jobRepo  *repository.JobRepository
	producer *mq.Producer
	logger   *zap.Logger
}

func NewJobHandler(jobRepo *repository.JobRepository, producer *mq.Producer, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobRepo:  jobRepo,
		producer: producer,
		logger:   logger,
	}
}

type createJobRequest struct {
	BatchType string `json:"batch_type" binding:"required"`
}

// CreateJob handles POST /jobs. The job row is created pending and the actual
// processing is triggered over MQ; the request never blocks on the batch.
func (h *JobHandler) CreateJob(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !model.ValidBatchType(req.BatchType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch_type must be one of full, incremental, refresh"})
		return
	}

	// one active job per account
	activeID, err := h.jobRepo.ActiveJobForAccount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check active jobs"})
		return
	}
	if activeID != "" {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "a processing job is already active for this account",
			"job_id": activeID,
		})
		return
	}

	job := &model.ProcessingJob{
		ID:        uuid.NewString(),
		AccountID: userID,
		Status:    model.JobStatusPending,
		BatchType: req.BatchType,
		CreatedAt: time.Now(),
	}
	if err := h.jobRepo.Create(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to create job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	payload := mq.JobCreatedPayload{
		JobID:     job.ID,
		AccountID: job.AccountID,
		BatchType: job.BatchType,
		TraceID:   trace.FromContext(c.Request.Context()),
	}
	if err := h.producer.Publish(mq.RoutingJobCreated, payload); err != nil {
		h.logger.Error("Failed to publish job.created",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		// the row stays pending; a manual replay can pick it up
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetJob handles GET /jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	job, err := h.jobRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch job"})
		return
	}
	if job == nil || job.AccountID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}
