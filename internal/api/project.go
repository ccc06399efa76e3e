package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
	"github.com/atelierlabs/studio-portal/internal/onboarding"
)

type phaseStatusPayload struct {
	ProjectID      int64       `json:"project_id,string"`
	CurrentPhase   phase.Key   `json:"current_phase"`
	PhaseStartedAt time.Time   `json:"phase_started_at"`
	Completed      bool        `json:"completed"`
	PhaseSet       []phase.Key `json:"phase_set"`
}

func (r *Router) CreateProject(c *gin.Context) {
	var req struct {
		Name         string   `json:"name"`
		ClientEmail  string   `json:"client_email"`
		ServiceCodes []string `json:"service_codes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	userID := c.GetInt64("UserID")
	proj, err := r.onboardingSvc.CreateProject(c.Request.Context(), onboarding.IntakeRequest{
		ClientUserID: userID,
		ClientEmail:  req.ClientEmail,
		Name:         req.Name,
		ServiceCodes: req.ServiceCodes,
	})
	if err != nil {
		if errors.Is(err, phase.ErrInvalidService) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		r.logger.Error("project_intake_failed",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("request_id", c.GetString("request_id")),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "project_created",
		"data":   proj,
	})
}

func (r *Router) ListProjects(c *gin.Context) {
	userID := c.GetInt64("UserID")
	projects, err := r.onboardingSvc.ListByClient(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": projects})
}

func (r *Router) GetProjectStatus(c *gin.Context) {
	proj, ok := r.resolveProject(c)
	if !ok {
		return
	}

	t, set, err := r.advanceUC.Status(c.Request.Context(), proj.ID)
	if err != nil {
		if errors.Is(err, tracking.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, phaseStatusPayload{
		ProjectID:      t.ProjectID,
		CurrentPhase:   t.CurrentPhase,
		PhaseStartedAt: t.PhaseStartedAt,
		Completed:      t.Completed,
		PhaseSet:       set,
	})
}

func (r *Router) GetPendingActions(c *gin.Context) {
	proj, ok := r.resolveProject(c)
	if !ok {
		return
	}

	t, _, err := r.advanceUC.Status(c.Request.Context(), proj.ID)
	if err != nil {
		if errors.Is(err, tracking.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	report, err := r.gateSvc.Check(c.Request.Context(), proj.ID, t.CurrentPhase)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (r *Router) GetProjectHistory(c *gin.Context) {
	proj, ok := r.resolveProject(c)
	if !ok {
		return
	}

	entries, err := r.history.History(c.Request.Context(), proj.ID, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (r *Router) AdvanceProject(c *gin.Context) {
	proj, ok := r.resolveProject(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional; advancing with no reason is fine.
	_ = c.ShouldBindJSON(&req)
	reason := req.Reason
	if reason == "" {
		reason = "client requested"
	}

	// Client advances are gated; the operator route can override. A failed
	// gate is informational, with the unmet requirements spelled out so the
	// portal can say what is still missing.
	ctx := c.Request.Context()
	t, _, err := r.advanceUC.Status(ctx, proj.ID)
	if err != nil {
		if errors.Is(err, tracking.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !t.Completed {
		report, err := r.gateSvc.Check(ctx, proj.ID, t.CurrentPhase)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !report.Satisfied {
			c.JSON(http.StatusConflict, gin.H{
				"error":           "requirements_not_met",
				"phase":           t.CurrentPhase,
				"pending_actions": report.Pending,
			})
			return
		}
	}

	userID := c.GetInt64("UserID")
	r.advanceWith(c, proj.ID, t.CurrentPhase, reason, tracking.ClientActor(userID))
}

// advanceWith runs the advance out of the phase the handler observed, so a
// duplicate submit races to a no-op instead of a double advance.
func (r *Router) advanceWith(c *gin.Context, projectID int64, from phase.Key, reason string, actor tracking.Actor) {
	res, err := r.advanceUC.Execute(c.Request.Context(), projectID, from, reason, actor)
	if err != nil {
		if errors.Is(err, tracking.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		r.logger.Error("phase_advance_failed",
			zap.Error(err),
			zap.Int64("project_id", projectID),
			zap.String("actor", actor.String()),
			zap.String("request_id", c.GetString("request_id")),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"new_phase":        res.NewPhase,
		"terminal":         res.Terminal,
		"already_complete": res.AlreadyComplete,
	})
}
