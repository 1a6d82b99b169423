package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wyatt/creatorscout/internal/service"
)

// PipelineHandler handles pipeline job endpoints.
type PipelineHandler struct {
	pipeline *service.PipelineOrchestrator
}

// NewPipelineHandler creates a new pipeline handler.
// Parameters:
//   - pipeline: pipeline orchestrator instance.
// Returns:
//   - *PipelineHandler: initialized handler.
func NewPipelineHandler(pipeline *service.PipelineOrchestrator) *PipelineHandler {
	return &PipelineHandler{
		pipeline: pipeline,
	}
}

// Submit handles POST /api/v1/pipelines. It returns 202 with the job id
// before the pipeline finishes; progress is read via Status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PipelineHandler) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	jobID, err := h.pipeline.Submit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit pipeline: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "accepted",
		"job_id": jobID,
	})
}

// Status handles GET /api/v1/pipelines/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PipelineHandler) Status(c *gin.Context) {
	snapshot, err := h.pipeline.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load job: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// Cancel handles POST /api/v1/pipelines/:id/cancel. Cancelling an already
// terminal job is a no-op reported in the response, not an error.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PipelineHandler) Cancel(c *gin.Context) {
	applied, err := h.pipeline.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel job: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "cancelled",
		"applied": applied,
	})
}

// List handles GET /api/v1/pipelines.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PipelineHandler) List(c *gin.Context) {
	ownerID := c.Query("owner_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	jobs, err := h.pipeline.ListJobs(c.Request.Context(), ownerID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// Stats handles GET /api/v1/stats.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PipelineHandler) Stats(c *gin.Context) {
	stats, err := h.pipeline.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get stats: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs_by_status": stats,
	})
}
