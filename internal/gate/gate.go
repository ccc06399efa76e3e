package gate

import (
	"context"
	"fmt"

	"github.com/atelierlabs/studio-portal/internal/catalog"
	"github.com/atelierlabs/studio-portal/internal/domain/action"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

// Gate decides whether a project's phase has every mandatory action
// completed. It performs no writes: it is a pure aggregate over the phase
// catalog and the action status rows written by the owning subsystems, so
// any number of heterogeneous action producers plug into one gating contract.
type Gate struct {
	catalog *catalog.Service
	reader  action.StatusReader
}

func New(catalogSvc *catalog.Service, reader action.StatusReader) *Gate {
	return &Gate{catalog: catalogSvc, reader: reader}
}

// Report is the structured gating answer. Handlers return Pending to callers
// so "not yet allowed" stays distinguishable from "broken".
type Report struct {
	PhaseKey  phase.Key        `json:"phase_key"`
	Satisfied bool             `json:"satisfied"`
	Pending   []phase.ActionID `json:"pending"`
}

// PendingActions returns the unmet mandatory actions for a phase. A phase
// with zero configured actions yields an empty result.
func (g *Gate) PendingActions(ctx context.Context, projectID int64, key phase.Key) ([]phase.ActionID, error) {
	required, err := g.catalog.RequiredActions(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(required) == 0 {
		return nil, nil
	}

	ids := make([]phase.ActionID, 0, len(required))
	for _, ra := range required {
		ids = append(ids, ra.ID)
	}

	statuses, err := g.reader.ListStatuses(ctx, projectID, ids)
	if err != nil {
		return nil, fmt.Errorf("load action statuses: %w", err)
	}

	done := make(map[phase.ActionID]bool, len(statuses))
	for _, st := range statuses {
		if st.Completed() {
			done[st.ActionID] = true
		}
	}

	var pending []phase.ActionID
	for _, id := range ids {
		if !done[id] {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

// IsSatisfied is true iff PendingActions is empty; the two can never
// disagree because one is defined in terms of the other.
func (g *Gate) IsSatisfied(ctx context.Context, projectID int64, key phase.Key) (bool, error) {
	pending, err := g.PendingActions(ctx, projectID, key)
	if err != nil {
		return false, err
	}
	return len(pending) == 0, nil
}

// Check bundles both answers for API consumers.
func (g *Gate) Check(ctx context.Context, projectID int64, key phase.Key) (Report, error) {
	pending, err := g.PendingActions(ctx, projectID, key)
	if err != nil {
		return Report{}, err
	}
	return Report{PhaseKey: key, Satisfied: len(pending) == 0, Pending: pending}, nil
}
