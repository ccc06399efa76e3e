package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
)

// CompleteAction records an action completion reported by the owning
// subsystem (payment webhook, form submit, signature callback) and
// immediately re-evaluates the project, so an external completion can
// auto-advance without waiting for the next tick.
func (r *Router) CompleteAction(c *gin.Context) {
	var req struct {
		ProjectID int64  `json:"project_id,string"`
		ActionID  string `json:"action_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	if req.ProjectID == 0 || req.ActionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id and action_id are required"})
		return
	}

	r.recordCompletion(c, req.ProjectID, phase.ActionID(req.ActionID))
}

// PaymentWebhook is the payment provider's entry point. It records the final
// payment action and rides the same evaluation path as any other completion.
func (r *Router) PaymentWebhook(c *gin.Context) {
	var req struct {
		ProjectID int64  `json:"project_id,string"`
		ActionID  string `json:"action_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	if req.ProjectID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id is required"})
		return
	}
	if req.ActionID == "" {
		req.ActionID = "final_payment"
	}

	r.recordCompletion(c, req.ProjectID, phase.ActionID(req.ActionID))
}

func (r *Router) recordCompletion(c *gin.Context, projectID int64, actionID phase.ActionID) {
	ctx := c.Request.Context()
	if err := r.actions.MarkCompleted(ctx, projectID, actionID, time.Now().UTC()); err != nil {
		r.logger.Error("action_completion_failed",
			zap.Error(err),
			zap.Int64("project_id", projectID),
			zap.String("action_id", string(actionID)),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := r.automation.EvaluateProject(ctx, projectID); err != nil {
		if errors.Is(err, tracking.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		// The completion is durable; the next sweep retries the evaluation.
		r.logger.Warn("post_completion_evaluation_failed",
			zap.Error(err),
			zap.Int64("project_id", projectID),
		)
	}

	c.JSON(http.StatusOK, gin.H{"status": "action_completed"})
}
