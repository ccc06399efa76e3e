package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
)

// AdminAdvanceProject advances a project on behalf of an operator. The
// operator id travels in the payload since admin calls carry no user session.
func (r *Router) AdminAdvanceProject(c *gin.Context) {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	var req struct {
		Reason     string `json:"reason"`
		OperatorID int64  `json:"operator_id,string"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "operator requested"
	}

	t, _, err := r.advanceUC.Status(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, tracking.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	r.advanceWith(c, projectID, t.CurrentPhase, reason, tracking.OperatorActor(req.OperatorID))
}

// InvalidateCatalog drops the catalog cache after an administrative edit.
func (r *Router) InvalidateCatalog(c *gin.Context) {
	r.catalogSvc.Invalidate()
	c.JSON(http.StatusOK, gin.H{"status": "catalog_invalidated"})
}

// ListRules returns the active automation rule set.
func (r *Router) ListRules(c *gin.Context) {
	rules := r.ruleCache.Current().Rules()

	type rulePayload struct {
		ID           int64  `json:"id,string"`
		FromPhase    string `json:"from_phase,omitempty"`
		ToPhase      string `json:"to_phase"`
		AutoAdvance  bool   `json:"auto_advance"`
		StuckAfterH  int64  `json:"stuck_after_hours,omitempty"`
		RemindAfterH int64  `json:"remind_after_hours,omitempty"`
	}

	out := make([]rulePayload, 0, len(rules))
	for _, rule := range rules {
		p := rulePayload{
			ID:           rule.ID,
			ToPhase:      string(rule.ToPhase),
			AutoAdvance:  rule.AutoAdvance,
			StuckAfterH:  int64(rule.StuckAfter.Hours()),
			RemindAfterH: int64(rule.RemindAfter.Hours()),
		}
		if rule.FromPhase != nil {
			p.FromPhase = string(*rule.FromPhase)
		}
		out = append(out, p)
	}

	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// ReloadRules replaces the active automation rule set from storage.
func (r *Router) ReloadRules(c *gin.Context) {
	if err := r.ruleCache.Reload(c.Request.Context()); err != nil {
		r.logger.Error("rules_reload_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "rules_reloaded",
		"count":  r.ruleCache.Current().Len(),
	})
}

// TriggerSweep runs one evaluation pass immediately.
func (r *Router) TriggerSweep(c *gin.Context) {
	if err := r.automation.Sweep(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sweep_completed"})
}
