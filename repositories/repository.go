package repository

import (
	"context"
	"errors"

	"kpitracker/models"
)

const (
	MasterKPICollection   = "master_kpis"
	AssignmentCollection  = "kpi_assignments"
	UserProfileCollection = "user_profiles"
)

// ErrNotFound is returned by single-document lookups that match nothing.
var ErrNotFound = errors.New("document not found")

type MasterKPIRepository interface {
	GetAll(ctx context.Context) ([]models.MasterKPI, error)
	GetByID(ctx context.Context, id string) (*models.MasterKPI, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.MasterKPI, error)
	FindByCategory(ctx context.Context, category models.Category) ([]models.MasterKPI, error)
	Upsert(ctx context.Context, kpi *models.MasterKPI) error
	Count(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, kpis []models.MasterKPI) error
}

type AssignmentRepository interface {
	GetByKey(ctx context.Context, agentUID, kpiID, period string) (*models.Assignment, error)
	ListByAgentPeriod(ctx context.Context, agentUID, period string) ([]models.Assignment, error)
	// RecordSubmission sets the current value and appends entry in one atomic
	// write. When no document exists, seed provides the denormalized fields.
	RecordSubmission(ctx context.Context, seed *models.Assignment, entry models.SubmissionEntry) (*models.Assignment, error)
	// AssignBatch upserts every assignment or none of them.
	AssignBatch(ctx context.Context, assignments []models.Assignment) error
	SummarizePeriod(ctx context.Context, period string) ([]models.KPISummary, error)
}

type UserProfileRepository interface {
	GetByID(ctx context.Context, uid string) (*models.UserProfile, error)
	GetByIDs(ctx context.Context, uids []string) (map[string]models.UserProfile, error)
	Upsert(ctx context.Context, profile *models.UserProfile) error
	// SetRole mirrors a role claim, creating a bare profile when none exists.
	SetRole(ctx context.Context, uid string, role models.Role, updatedBy string) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
