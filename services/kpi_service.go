package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"kpitracker/apperrors"
	"kpitracker/identity"
	"kpitracker/models"
	repository "kpitracker/repositories"

	"go.uber.org/zap"
)

type KPIService interface {
	// GetKPIs returns requestedUID's KPIs for period merged with the master list.
	// Admins without a requestedUID get the whole master list at value zero.
	GetKPIs(ctx context.Context, caller *identity.Claims, requestedUID, period string) ([]models.KPIView, error)
	UpsertMasterKPI(ctx context.Context, caller *identity.Claims, kpi models.MasterKPI) (*models.MasterKPI, error)
	SummarizePeriod(ctx context.Context, caller *identity.Claims, period string) ([]models.KPISummary, error)
}

type kpiService struct {
	masters     repository.MasterKPIRepository
	assignments repository.AssignmentRepository
	log         *zap.Logger
	now         func() time.Time
}

func NewKPIService(masters repository.MasterKPIRepository, assignments repository.AssignmentRepository, log *zap.Logger) KPIService {
	return &kpiService{
		masters:     masters,
		assignments: assignments,
		log:         log,
		now:         time.Now,
	}
}

func (s *kpiService) GetKPIs(ctx context.Context, caller *identity.Claims, requestedUID, period string) ([]models.KPIView, error) {
	period, err := resolvePeriod(period, s.now)
	if err != nil {
		return nil, err
	}

	if requestedUID == "" {
		if err := RequireAdmin(caller); err != nil {
			return nil, err
		}
		masters, err := s.masters.GetAll(ctx)
		if err != nil {
			return nil, apperrors.Internal(err, "Failed to load master KPIs")
		}
		return sortViews(zeroViews(masters, period)), nil
	}

	if !CanRead(caller, requestedUID) {
		return nil, apperrors.Forbidden("Not allowed to view KPIs of another user")
	}

	docs, err := s.assignments.ListByAgentPeriod(ctx, requestedUID, period)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load KPI assignments")
	}

	views, err := s.documentViews(ctx, docs, period)
	if err != nil {
		return nil, err
	}
	for _, a := range docs {
		if a.Explicit() {
			return sortViews(views), nil
		}
	}

	// Without explicit assignments the agent tracks the common KPIs; values
	// already submitted for them are kept.
	common, err := s.masters.FindByCategory(ctx, models.CategoryCommon)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load master KPIs")
	}
	submitted := make(map[string]bool, len(docs))
	for _, a := range docs {
		submitted[a.KPIID] = true
	}
	for _, m := range common {
		if !submitted[m.ID] {
			views = append(views, models.NewKPIView(m, models.Numeric(0), period))
		}
	}
	s.log.Debug("No explicit assignments, returning common KPIs",
		zap.String("uid", requestedUID), zap.String("period", period),
		zap.Int("count", len(common)), zap.Int("submitted", len(docs)))
	return sortViews(views), nil
}

// documentViews merges stored documents with their current master KPI,
// falling back to the copy taken when the document was created.
func (s *kpiService) documentViews(ctx context.Context, docs []models.Assignment, period string) ([]models.KPIView, error) {
	views := make([]models.KPIView, 0, len(docs))
	if len(docs) == 0 {
		return views, nil
	}

	ids := make([]string, len(docs))
	for i, a := range docs {
		ids[i] = a.KPIID
	}
	masters, err := s.masters.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load master KPIs")
	}
	byID := make(map[string]models.MasterKPI, len(masters))
	for _, m := range masters {
		byID[m.ID] = m
	}

	for _, a := range docs {
		master, ok := byID[a.KPIID]
		if !ok {
			master = a.Denormalized()
		}
		view := models.NewKPIView(master, a.CurrentValue, period)
		view.Assigned = a.Explicit()
		views = append(views, view)
	}
	return views, nil
}

func (s *kpiService) UpsertMasterKPI(ctx context.Context, caller *identity.Claims, kpi models.MasterKPI) (*models.MasterKPI, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}
	if !kpi.Category.Valid() {
		return nil, apperrors.InvalidRequest("Unknown category %q", kpi.Category)
	}

	now := s.now()
	kpi.Metadata = models.Metadata{CreatedBy: caller.UID, CreatedAt: now}
	existing, err := s.masters.GetByID(ctx, kpi.ID)
	switch {
	case err == nil:
		kpi.Metadata.CreatedBy = existing.Metadata.CreatedBy
		kpi.Metadata.CreatedAt = existing.Metadata.CreatedAt
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err, "Failed to load master KPI")
	}
	kpi.Metadata.UpdatedBy = caller.UID
	kpi.Metadata.UpdatedAt = now

	if err := s.masters.Upsert(ctx, &kpi); err != nil {
		return nil, apperrors.Internal(err, "Failed to save master KPI")
	}
	s.log.Info("Master KPI saved", zap.String("kpi_id", kpi.ID), zap.String("by", caller.UID))
	return &kpi, nil
}

func (s *kpiService) SummarizePeriod(ctx context.Context, caller *identity.Claims, period string) ([]models.KPISummary, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}
	period, err := resolvePeriod(period, s.now)
	if err != nil {
		return nil, err
	}
	summary, err := s.assignments.SummarizePeriod(ctx, period)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to summarize period")
	}
	return summary, nil
}

// resolvePeriod defaults an empty period to the current month.
func resolvePeriod(period string, now func() time.Time) (string, error) {
	if period == "" {
		return models.CurrentPeriod(now()), nil
	}
	if !models.ValidPeriod(period) {
		return "", apperrors.InvalidRequest("monthYear must be formatted YYYY-MM")
	}
	return period, nil
}

func zeroViews(masters []models.MasterKPI, period string) []models.KPIView {
	views := make([]models.KPIView, len(masters))
	for i, m := range masters {
		views[i] = models.NewKPIView(m, models.Numeric(0), period)
	}
	return views
}

// sortViews orders by category display order, then id with numeric suffixes
// compared as numbers so common2 precedes common10.
func sortViews(views []models.KPIView) []models.KPIView {
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Category != views[j].Category {
			return models.CategoryLess(views[i].Category, views[j].Category)
		}
		return idLess(views[i].ID, views[j].ID)
	})
	return views
}

func idLess(a, b string) bool {
	pa, na, oka := splitNumericSuffix(a)
	pb, nb, okb := splitNumericSuffix(b)
	if oka && okb && pa == pb && na != nb {
		return na < nb
	}
	return a < b
}

func splitNumericSuffix(id string) (string, int, bool) {
	prefix := strings.TrimRight(id, "0123456789")
	n, err := strconv.Atoi(id[len(prefix):])
	return prefix, n, err == nil
}
