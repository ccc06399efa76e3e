package postgres

import (
	"strings"
	"time"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/domain/project"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
)

// ProjectModel is the database DTO with gorm tags.
type ProjectModel struct {
	ID           int64  `gorm:"primaryKey"`
	ClientUserID int64  `gorm:"not null;index"`
	ClientEmail  string `gorm:"type:varchar(255)"`
	Name         string `gorm:"type:varchar(255);not null"`
	ServiceCodes string `gorm:"type:text"` // comma-separated service codes
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ProjectModel) TableName() string {
	return "projects"
}

// TrackingModel holds the single workflow row per project.
type TrackingModel struct {
	ID             int64  `gorm:"primaryKey"`
	ProjectID      int64  `gorm:"uniqueIndex;not null"`
	CurrentPhase   string `gorm:"column:current_phase_key;type:varchar(20);not null"`
	PhaseStartedAt time.Time
	Completed      bool `gorm:"column:is_completed;not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TrackingModel) TableName() string {
	return "phase_trackings"
}

// HistoryModel is the append-only transition audit trail.
type HistoryModel struct {
	ID         int64  `gorm:"primaryKey"`
	ProjectID  int64  `gorm:"not null;index"`
	PhaseKey   string `gorm:"type:varchar(20);not null"`
	Reason     string `gorm:"type:text"`
	ActorKind  string `gorm:"type:varchar(20);not null"`
	ActorID    int64
	OccurredAt time.Time
}

func (HistoryModel) TableName() string {
	return "phase_history"
}

// PhaseDefinitionModel is one catalog phase.
type PhaseDefinitionModel struct {
	Key                  string `gorm:"primaryKey;type:varchar(20)"`
	DisplayName          string `gorm:"type:varchar(100);not null"`
	SortOrder            int    `gorm:"not null"`
	RequiresClientAction bool   `gorm:"not null;default:false"`
}

func (PhaseDefinitionModel) TableName() string {
	return "phase_definitions"
}

// RequiredActionModel is one mandatory action configured on a phase.
type RequiredActionModel struct {
	ID          string `gorm:"primaryKey;type:varchar(50)"`
	PhaseKey    string `gorm:"type:varchar(20);not null;index"`
	DisplayName string `gorm:"type:varchar(100);not null"`
}

func (RequiredActionModel) TableName() string {
	return "required_actions"
}

// ServiceDefinitionModel maps a service code to its default phase keys.
type ServiceDefinitionModel struct {
	Code        string `gorm:"primaryKey;type:varchar(50)"`
	DisplayName string `gorm:"type:varchar(100);not null"`
	PhaseKeys   string `gorm:"type:text;not null"` // comma-separated phase keys
}

func (ServiceDefinitionModel) TableName() string {
	return "service_definitions"
}

// ActionStatusModel is a per-project, per-action completion flag.
type ActionStatusModel struct {
	ProjectID   int64  `gorm:"primaryKey"`
	ActionID    string `gorm:"primaryKey;type:varchar(50)"`
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ActionStatusModel) TableName() string {
	return "action_statuses"
}

// AutomationRuleModel is one configured evaluator behavior.
type AutomationRuleModel struct {
	ID           int64   `gorm:"primaryKey"`
	FromPhaseKey *string `gorm:"type:varchar(20)"` // NULL matches any source phase
	ToPhaseKey   string  `gorm:"type:varchar(20);not null"`
	AutoAdvance  bool    `gorm:"not null;default:false"`
	StuckAfterH  int     `gorm:"column:stuck_after_hours;not null;default:0"`
	RemindAfterH int     `gorm:"column:remind_after_hours;not null;default:0"`
	Enabled      bool    `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AutomationRuleModel) TableName() string {
	return "automation_rules"
}

// DedupeModel suppresses repeated notices within a cool-down window.
type DedupeModel struct {
	Key        string `gorm:"primaryKey;type:varchar(100)"`
	LastSentAt time.Time
}

func (DedupeModel) TableName() string {
	return "notification_dedupe"
}

// Mappers

func joinCodes(codes []string) string {
	return strings.Join(codes, ",")
}

func splitCodes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func projectToDomain(m ProjectModel) *project.Project {
	return &project.Project{
		ID:           m.ID,
		ClientUserID: m.ClientUserID,
		ClientEmail:  m.ClientEmail,
		Name:         m.Name,
		ServiceCodes: splitCodes(m.ServiceCodes),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func projectToModel(d *project.Project) ProjectModel {
	return ProjectModel{
		ID:           d.ID,
		ClientUserID: d.ClientUserID,
		ClientEmail:  d.ClientEmail,
		Name:         d.Name,
		ServiceCodes: joinCodes(d.ServiceCodes),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func trackingToDomain(m TrackingModel) *tracking.Tracking {
	return &tracking.Tracking{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		CurrentPhase:   phase.Key(m.CurrentPhase),
		PhaseStartedAt: m.PhaseStartedAt,
		Completed:      m.Completed,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func trackingToModel(d *tracking.Tracking) TrackingModel {
	return TrackingModel{
		ID:             d.ID,
		ProjectID:      d.ProjectID,
		CurrentPhase:   string(d.CurrentPhase),
		PhaseStartedAt: d.PhaseStartedAt,
		Completed:      d.Completed,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
