// Package memstore keeps the KPI collections in process memory. It backs the
// "memory" database driver and the service tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kpitracker/models"
	repository "kpitracker/repositories"
)

// Store holds all three collections behind one lock.
type Store struct {
	mu          sync.RWMutex
	masters     map[string]models.MasterKPI
	assignments map[string]models.Assignment
	profiles    map[string]models.UserProfile

	// FailAssignBatchAt makes AssignBatch fail without writing when the batch
	// holds at least that many assignments. Zero disables it.
	FailAssignBatchAt int
}

func New() *Store {
	return &Store{
		masters:     map[string]models.MasterKPI{},
		assignments: map[string]models.Assignment{},
		profiles:    map[string]models.UserProfile{},
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) MasterKPIs() repository.MasterKPIRepository {
	return masterKPIs{s}
}

func (s *Store) Assignments() repository.AssignmentRepository {
	return assignments{s}
}

func (s *Store) UserProfiles() repository.UserProfileRepository {
	return userProfiles{s}
}

type masterKPIs struct{ s *Store }

func (r masterKPIs) GetAll(ctx context.Context) ([]models.MasterKPI, error) {
	return r.filter(func(models.MasterKPI) bool { return true }), nil
}

func (r masterKPIs) GetByID(ctx context.Context, id string) (*models.MasterKPI, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	kpi, ok := r.s.masters[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &kpi, nil
}

func (r masterKPIs) GetByIDs(ctx context.Context, ids []string) ([]models.MasterKPI, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return r.filter(func(k models.MasterKPI) bool { return wanted[k.ID] }), nil
}

func (r masterKPIs) FindByCategory(ctx context.Context, category models.Category) ([]models.MasterKPI, error) {
	return r.filter(func(k models.MasterKPI) bool { return k.Category == category }), nil
}

func (r masterKPIs) filter(keep func(models.MasterKPI) bool) []models.MasterKPI {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	kpis := []models.MasterKPI{}
	for _, kpi := range r.s.masters {
		if keep(kpi) {
			kpis = append(kpis, kpi)
		}
	}
	sort.Slice(kpis, func(i, j int) bool { return kpis[i].ID < kpis[j].ID })
	return kpis
}

func (r masterKPIs) Upsert(ctx context.Context, kpi *models.MasterKPI) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.masters[kpi.ID] = *kpi
	return nil
}

func (r masterKPIs) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.masters)), nil
}

func (r masterKPIs) InsertMany(ctx context.Context, kpis []models.MasterKPI) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, kpi := range kpis {
		if _, exists := r.s.masters[kpi.ID]; exists {
			return fmt.Errorf("duplicate master KPI %q", kpi.ID)
		}
	}
	for _, kpi := range kpis {
		r.s.masters[kpi.ID] = kpi
	}
	return nil
}

type assignments struct{ s *Store }

func (r assignments) GetByKey(ctx context.Context, agentUID, kpiID, period string) (*models.Assignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	assignment, ok := r.s.assignments[models.AssignmentID(agentUID, kpiID, period)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	assignment = clone(assignment)
	return &assignment, nil
}

func (r assignments) ListByAgentPeriod(ctx context.Context, agentUID, period string) ([]models.Assignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := []models.Assignment{}
	for _, assignment := range r.s.assignments {
		if assignment.AgentUID == agentUID && assignment.Period == period {
			list = append(list, clone(assignment))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].KPIID < list[j].KPIID })
	return list, nil
}

func (r assignments) RecordSubmission(ctx context.Context, seed *models.Assignment, entry models.SubmissionEntry) (*models.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := entry.RecordedAt
	if now.IsZero() {
		now = time.Now()
	}
	assignment, ok := r.s.assignments[seed.ID]
	if !ok {
		assignment = clone(*seed)
		assignment.SubmissionHistory = []models.SubmissionEntry{}
		assignment.Metadata.CreatedAt = now
		assignment.Metadata.CreatedBy = entry.SubmittedByUID
	}
	assignment = clone(assignment)
	assignment.CurrentValue = entry.Value
	assignment.SubmissionHistory = append(assignment.SubmissionHistory, entry)
	assignment.Metadata.UpdatedAt = now
	assignment.Metadata.UpdatedBy = entry.SubmittedByUID
	r.s.assignments[assignment.ID] = assignment

	result := clone(assignment)
	return &result, nil
}

func (r assignments) AssignBatch(ctx context.Context, batch []models.Assignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailAssignBatchAt > 0 && len(batch) >= r.s.FailAssignBatchAt {
		return fmt.Errorf("simulated write failure for batch of %d", len(batch))
	}
	for _, assignment := range batch {
		r.s.assignments[assignment.ID] = clone(assignment)
	}
	return nil
}

func (r assignments) SummarizePeriod(ctx context.Context, period string) ([]models.KPISummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byKPI := map[string]*models.KPISummary{}
	for _, a := range r.s.assignments {
		if a.Period != period {
			continue
		}
		summary, ok := byKPI[a.KPIID]
		if !ok {
			summary = &models.KPISummary{KPIID: a.KPIID, KPIName: a.KPIName, Category: string(a.Category)}
			byKPI[a.KPIID] = summary
		}
		summary.AgentsAssigned++
		summary.Submissions += len(a.SubmissionHistory)
		if value, ok := a.CurrentValue.Number(); ok {
			summary.NumericTotal += value
			if target, ok := a.MonthlyTarget.Number(); ok && target > 0 && value >= target {
				summary.AgentsOnTarget++
			}
		}
	}

	summaries := make([]models.KPISummary, 0, len(byKPI))
	for _, summary := range byKPI {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].KPIID < summaries[j].KPIID })
	return summaries, nil
}

type userProfiles struct{ s *Store }

func (r userProfiles) GetByID(ctx context.Context, uid string) (*models.UserProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	profile, ok := r.s.profiles[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &profile, nil
}

func (r userProfiles) GetByIDs(ctx context.Context, uids []string) (map[string]models.UserProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	found := make(map[string]models.UserProfile, len(uids))
	for _, uid := range uids {
		if profile, ok := r.s.profiles[uid]; ok {
			found[uid] = profile
		}
	}
	return found, nil
}

func (r userProfiles) Upsert(ctx context.Context, profile *models.UserProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.profiles[profile.UID] = *profile
	return nil
}

func (r userProfiles) SetRole(ctx context.Context, uid string, role models.Role, updatedBy string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	profile, ok := r.s.profiles[uid]
	if !ok {
		profile = models.UserProfile{UID: uid}
		profile.Metadata.CreatedAt = now
		profile.Metadata.CreatedBy = updatedBy
	}
	profile.Role = role
	profile.Metadata.UpdatedAt = now
	profile.Metadata.UpdatedBy = updatedBy
	r.s.profiles[uid] = profile
	return nil
}

func clone(a models.Assignment) models.Assignment {
	history := make([]models.SubmissionEntry, len(a.SubmissionHistory))
	copy(history, a.SubmissionHistory)
	a.SubmissionHistory = history
	return a
}
