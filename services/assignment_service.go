package services

import (
	"context"
	"strings"
	"time"

	"kpitracker/apperrors"
	"kpitracker/identity"
	"kpitracker/models"
	repository "kpitracker/repositories"

	"go.uber.org/zap"
)

type AssignmentService interface {
	// AssignKPIs gives agentUID a fresh assignment at value zero for every id in
	// kpiIDs. Unknown ids fail the whole batch before anything is written.
	AssignKPIs(ctx context.Context, caller *identity.Claims, agentUID string, kpiIDs []string, period string) (*models.AssignmentBatch, error)
}

type assignmentService struct {
	masters     repository.MasterKPIRepository
	assignments repository.AssignmentRepository
	log         *zap.Logger
	now         func() time.Time
}

func NewAssignmentService(masters repository.MasterKPIRepository, assignments repository.AssignmentRepository, log *zap.Logger) AssignmentService {
	return &assignmentService{
		masters:     masters,
		assignments: assignments,
		log:         log,
		now:         time.Now,
	}
}

func (s *assignmentService) AssignKPIs(ctx context.Context, caller *identity.Claims, agentUID string, kpiIDs []string, period string) (*models.AssignmentBatch, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}
	ids := dedupe(kpiIDs)
	switch {
	case agentUID == "":
		return nil, apperrors.InvalidRequest("udyamMitraUid is required")
	case len(ids) == 0:
		return nil, apperrors.InvalidRequest("assignedKpiIds must contain at least one KPI id")
	case !models.ValidPeriod(period):
		return nil, apperrors.InvalidRequest("monthYear must be formatted YYYY-MM")
	}

	masters, err := s.masters.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load master KPIs")
	}
	byID := make(map[string]models.MasterKPI, len(masters))
	for _, m := range masters {
		byID[m.ID] = m
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NotFound("Unknown KPI ids: %s", strings.Join(missing, ", "))
	}

	now := s.now()
	batch := make([]models.Assignment, len(ids))
	for i, id := range ids {
		a := models.NewAssignment(agentUID, byID[id], period)
		a.AssignedBy = caller.UID
		a.Metadata = models.Metadata{CreatedBy: caller.UID, UpdatedBy: caller.UID, CreatedAt: now, UpdatedAt: now}
		batch[i] = a
	}

	if err := s.assignments.AssignBatch(ctx, batch); err != nil {
		return nil, apperrors.Internal(err, "Failed to assign KPIs")
	}
	s.log.Info("KPIs assigned",
		zap.String("uid", agentUID),
		zap.String("period", period),
		zap.Strings("kpi_ids", ids),
		zap.String("by", caller.UID),
	)
	return &models.AssignmentBatch{
		AgentUID:       agentUID,
		Period:         period,
		AssignedKPIIDs: ids,
		LastUpdated:    now,
	}, nil
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
