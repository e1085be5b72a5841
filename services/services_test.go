package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"kpitracker/apperrors"
	"kpitracker/database"
	"kpitracker/identity"
	"kpitracker/models"
	"kpitracker/repositories/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	admin = &identity.Claims{UID: "A1", Email: "admin@example.org", Role: models.RoleAdmin}
	agent = &identity.Claims{UID: "U1", Email: "u1@example.org", Role: models.RoleUdyamMitra}
	other = &identity.Claims{UID: "U2", Email: "u2@example.org", Role: models.RoleUdyamMitra}
)

type fixture struct {
	store       *memstore.Store
	kpis        *kpiService
	submissions *submissionService
	assignments *assignmentService
}

func newFixture(t *testing.T, allowUnassigned bool) *fixture {
	t.Helper()
	store := memstore.New()
	require.NoError(t, database.SeedMasterKPIs(context.Background(), store.MasterKPIs(), zap.NewNop()))

	clock := func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	kpis := NewKPIService(store.MasterKPIs(), store.Assignments(), zap.NewNop()).(*kpiService)
	kpis.now = clock
	submissions := NewSubmissionService(store.MasterKPIs(), store.Assignments(), allowUnassigned, zap.NewNop()).(*submissionService)
	submissions.now = clock
	assignments := NewAssignmentService(store.MasterKPIs(), store.Assignments(), zap.NewNop()).(*assignmentService)
	assignments.now = clock

	return &fixture{store: store, kpis: kpis, submissions: submissions, assignments: assignments}
}

func submission(kpiID string, value models.Measure) Submission {
	return Submission{KPIID: kpiID, Value: value, UdyamMitraID: "U1", SubmissionDate: "2025-06-20", Period: "2025-06"}
}

func ids(views []models.KPIView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestGetKPIsAdminMasterList(t *testing.T) {
	f := newFixture(t, true)

	views, err := f.kpis.GetKPIs(context.Background(), admin, "", "")
	require.NoError(t, err)
	require.Len(t, views, 29)

	assert.Equal(t, "common1", views[0].ID)
	assert.Equal(t, "common2", views[1].ID)
	assert.Equal(t, "common14", views[13].ID)
	assert.Equal(t, "eco1", views[14].ID)
	assert.Equal(t, "dbms3", views[28].ID)
	for _, v := range views {
		assert.Equal(t, "0", v.CurrentValue.String(), v.ID)
		assert.Equal(t, "2025-06", v.MonthYear)
	}
}

func TestGetKPIsWithoutAssignmentsReturnsCommonAtZero(t *testing.T) {
	f := newFixture(t, true)

	views, err := f.kpis.GetKPIs(context.Background(), agent, "U1", "2025-06")
	require.NoError(t, err)
	require.Len(t, views, 14)
	for _, v := range views {
		assert.Equal(t, models.CategoryCommon, v.Category)
		assert.Equal(t, "0", v.CurrentValue.String())
		assert.False(t, v.Assigned)
	}
}

func TestGetKPIsAuthorization(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.kpis.GetKPIs(ctx, agent, "U2", "2025-06")
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.kpis.GetKPIs(ctx, agent, "", "2025-06")
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.kpis.GetKPIs(ctx, admin, "U2", "June")
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))

	_, err = f.kpis.GetKPIs(ctx, admin, "U2", "2025-06")
	assert.NoError(t, err)
}

func TestAssignSubmitAndReadBack(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	batch, err := f.assignments.AssignKPIs(ctx, admin, "U1", []string{"common1"}, "2025-06")
	require.NoError(t, err)
	assert.Equal(t, []string{"common1"}, batch.AssignedKPIIDs)

	_, err = f.submissions.SubmitKPI(ctx, agent, submission("common1", models.Numeric(7)))
	require.NoError(t, err)

	views, err := f.kpis.GetKPIs(ctx, admin, "U1", "2025-06")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "common1", views[0].ID)
	assert.Equal(t, "7", views[0].CurrentValue.String())
	assert.Equal(t, "10", views[0].MonthlyTarget.String())
	require.NotNil(t, views[0].ProgressPercent)
	assert.Equal(t, 70, *views[0].ProgressPercent)
	assert.True(t, views[0].Assigned)
}

func TestGetKPIsFallsBackToDenormalizedCopy(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	retired := models.MasterKPI{ID: "pilot1", KPIName: "Pilot", MonthlyTarget: models.Numeric(3), Category: models.CategoryEcosystem}
	a := models.NewAssignment("U1", retired, "2025-06")
	a.AssignedBy = admin.UID
	require.NoError(t, f.store.Assignments().AssignBatch(ctx, []models.Assignment{a}))

	views, err := f.kpis.GetKPIs(ctx, agent, "U1", "2025-06")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Pilot", views[0].KPIName)
	assert.Equal(t, models.CategoryEcosystem, views[0].Category)
}

func TestGetKPIsKeepsCommonListAfterUnassignedSubmission(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	before, err := f.kpis.GetKPIs(ctx, agent, "U1", "2025-06")
	require.NoError(t, err)
	require.Len(t, before, 14)

	_, err = f.submissions.SubmitKPI(ctx, agent, submission("common1", models.Numeric(3)))
	require.NoError(t, err)
	_, err = f.submissions.SubmitKPI(ctx, agent, submission("eco2", models.Numeric(4)))
	require.NoError(t, err)

	after, err := f.kpis.GetKPIs(ctx, agent, "U1", "2025-06")
	require.NoError(t, err)
	require.Len(t, after, 15)
	assert.Equal(t, ids(before), ids(after[:14]))
	assert.Equal(t, "eco2", after[14].ID)

	assert.Equal(t, "3", after[0].CurrentValue.String())
	require.NotNil(t, after[0].ProgressPercent)
	assert.Equal(t, 30, *after[0].ProgressPercent)
	assert.False(t, after[0].Assigned)
	assert.Equal(t, "0", after[1].CurrentValue.String())
	assert.Equal(t, "4", after[14].CurrentValue.String())

	// An explicit assignment replaces the common list.
	_, err = f.assignments.AssignKPIs(ctx, admin, "U1", []string{"hosp1"}, "2025-06")
	require.NoError(t, err)
	assigned, err := f.kpis.GetKPIs(ctx, agent, "U1", "2025-06")
	require.NoError(t, err)
	assert.Equal(t, []string{"common1", "eco2", "hosp1"}, ids(assigned))
	assert.False(t, assigned[0].Assigned)
	assert.True(t, assigned[2].Assigned)
}

func TestGetKPIsUsesCurrentMasterFields(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.assignments.AssignKPIs(ctx, admin, "U1", []string{"eco1"}, "2025-06")
	require.NoError(t, err)

	renamed, err := f.store.MasterKPIs().GetByID(ctx, "eco1")
	require.NoError(t, err)
	renamed.KPIName = "Loan Applications Filed"
	_, err = f.kpis.UpsertMasterKPI(ctx, admin, *renamed)
	require.NoError(t, err)

	views, err := f.kpis.GetKPIs(ctx, agent, "U1", "2025-06")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Loan Applications Filed", views[0].KPIName)
}

func TestSubmitKPIAppendsHistoryPerCall(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.assignments.AssignKPIs(ctx, admin, "U1", []string{"common1"}, "2025-06")
	require.NoError(t, err)

	var last *models.Assignment
	for i := 0; i < 3; i++ {
		last, err = f.submissions.SubmitKPI(ctx, agent, submission("common1", models.Numeric(5)))
		require.NoError(t, err)
	}
	assert.Len(t, last.SubmissionHistory, 3)
	assert.Equal(t, "5", last.CurrentValue.String())
	for _, entry := range last.SubmissionHistory {
		assert.Equal(t, models.SubmissionUpdate, entry.SubmissionType)
		assert.Equal(t, "u1@example.org", entry.SubmittedByEmail)
	}

	list, err := f.store.Assignments().ListByAgentPeriod(ctx, "U1", "2025-06")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSubmitKPIUnassigned(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed creates assignment", func(t *testing.T) {
		f := newFixture(t, true)
		created, err := f.submissions.SubmitKPI(ctx, agent, submission("dbms2", models.Descriptive("Reviewed")))
		require.NoError(t, err)
		assert.Equal(t, "Monthly Review", created.MonthlyTarget.Text())
		require.Len(t, created.SubmissionHistory, 1)
		assert.Equal(t, models.SubmissionInitial, created.SubmissionHistory[0].SubmissionType)
	})

	t.Run("unknown master is not found", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.submissions.SubmitKPI(ctx, agent, submission("ghost", models.Numeric(1)))
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("disabled rejects", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.submissions.SubmitKPI(ctx, agent, submission("common1", models.Numeric(1)))
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
		assert.Equal(t, "KPI not assigned", apperrors.MessageOf(err))
	})
}

func TestSubmitKPIRejects(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	forOther := submission("common1", models.Numeric(1))
	forOther.UdyamMitraID = "U2"
	_, err := f.submissions.SubmitKPI(ctx, agent, forOther)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	// Admins do not submit on behalf of agents either.
	_, err = f.submissions.SubmitKPI(ctx, admin, submission("common1", models.Numeric(1)))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	bad := []Submission{
		{Value: models.Numeric(1), UdyamMitraID: "U1", SubmissionDate: "2025-06-20", Period: "2025-06"},
		{KPIID: "common1", Value: models.Descriptive(" "), UdyamMitraID: "U1", SubmissionDate: "2025-06-20", Period: "2025-06"},
		{KPIID: "common1", Value: models.Numeric(1), UdyamMitraID: "U1", SubmissionDate: "2025-06-20", Period: "06-2025"},
		{KPIID: "common1", Value: models.Numeric(1), UdyamMitraID: "U1", SubmissionDate: "20/06/2025", Period: "2025-06"},
	}
	for _, sub := range bad {
		_, err := f.submissions.SubmitKPI(ctx, agent, sub)
		assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err), "%+v", sub)
	}
}

func TestAssignKPIs(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id persists nothing", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.assignments.AssignKPIs(ctx, admin, "U1", []string{"common1", "nope", "common2"}, "2025-06")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
		assert.Contains(t, apperrors.MessageOf(err), "nope")

		list, err := f.store.Assignments().ListByAgentPeriod(ctx, "U1", "2025-06")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("duplicates collapse and reassignment resets", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.assignments.AssignKPIs(ctx, admin, "U1", []string{"common1"}, "2025-06")
		require.NoError(t, err)
		_, err = f.submissions.SubmitKPI(ctx, agent, submission("common1", models.Numeric(9)))
		require.NoError(t, err)

		batch, err := f.assignments.AssignKPIs(ctx, admin, "U1", []string{"common1", "common1", "eco2"}, "2025-06")
		require.NoError(t, err)
		assert.Equal(t, []string{"common1", "eco2"}, batch.AssignedKPIIDs)
		assert.Equal(t, "2025-06", batch.Period)

		stored, err := f.store.Assignments().GetByKey(ctx, "U1", "common1", "2025-06")
		require.NoError(t, err)
		assert.Equal(t, "0", stored.CurrentValue.String())
		assert.Empty(t, stored.SubmissionHistory)
		assert.Equal(t, "A1", stored.AssignedBy)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		f := newFixture(t, true)
		f.store.FailAssignBatchAt = 1
		_, err := f.assignments.AssignKPIs(ctx, admin, "U1", []string{"common1"}, "2025-06")
		assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.assignments.AssignKPIs(ctx, agent, "U1", []string{"common1"}, "2025-06")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
		_, err = f.assignments.AssignKPIs(ctx, admin, "", []string{"common1"}, "2025-06")
		assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
		_, err = f.assignments.AssignKPIs(ctx, admin, "U1", []string{" "}, "2025-06")
		assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
		_, err = f.assignments.AssignKPIs(ctx, admin, "U1", []string{"common1"}, "2025-6")
		assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
	})
}

func TestUpsertMasterKPIKeepsCreation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	kpi := models.MasterKPI{ID: "eco7", KPIName: "Cluster Visits", MonthlyTarget: models.Numeric(3), Category: models.CategoryEcosystem}
	created, err := f.kpis.UpsertMasterKPI(ctx, admin, kpi)
	require.NoError(t, err)
	assert.Equal(t, "A1", created.Metadata.CreatedBy)

	editor := &identity.Claims{UID: "A2", Role: models.RoleAdmin}
	kpi.MonthlyTarget = models.Descriptive("As per deployment")
	updated, err := f.kpis.UpsertMasterKPI(ctx, editor, kpi)
	require.NoError(t, err)
	assert.Equal(t, "A1", updated.Metadata.CreatedBy)
	assert.Equal(t, "A2", updated.Metadata.UpdatedBy)
	assert.Equal(t, "As per deployment", updated.MonthlyTarget.Text())

	_, err = f.kpis.UpsertMasterKPI(ctx, agent, kpi)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	kpi.Category = "sports"
	_, err = f.kpis.UpsertMasterKPI(ctx, admin, kpi)
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
}

func TestSummarizePeriod(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.assignments.AssignKPIs(ctx, admin, "U1", []string{"common1"}, "2025-06")
	require.NoError(t, err)
	_, err = f.submissions.SubmitKPI(ctx, agent, submission("common1", models.Numeric(11)))
	require.NoError(t, err)

	summary, err := f.kpis.SummarizePeriod(ctx, admin, "")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].AgentsOnTarget)
	assert.Equal(t, float64(11), summary[0].NumericTotal)

	_, err = f.kpis.SummarizePeriod(ctx, agent, "2025-06")
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

type failingDirectory struct {
	*identity.MemoryDirectory
}

func (failingDirectory) RevokeSessions(context.Context, string) error {
	return apperrors.Internal(errors.New("quota exceeded"), "failed to revoke sessions")
}

func TestSetUserRole(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	dir := identity.NewMemoryDirectory(models.IdentityRecord{UID: "U2"})
	users := NewUserService(dir, store.UserProfiles(), 1000, zap.NewNop())

	err := users.SetUserRole(ctx, other, "U2", models.RoleAdmin)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	role, _ := dir.Role("U2")
	assert.Equal(t, models.RoleUdyamMitra, role)

	require.NoError(t, users.SetUserRole(ctx, admin, "U2", models.RoleAdmin))
	role, _ = dir.Role("U2")
	assert.Equal(t, models.RoleAdmin, role)
	assert.Equal(t, 1, dir.Revocations("U2"))

	profile, err := store.UserProfiles().GetByID(ctx, "U2")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, profile.Role)

	err = users.SetUserRole(ctx, admin, "U2", "superuser")
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))

	err = users.SetUserRole(ctx, admin, "ghost", models.RoleAdmin)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	failing := NewUserService(failingDirectory{dir}, store.UserProfiles(), 1000, zap.NewNop())
	err = failing.SetUserRole(ctx, admin, "U2", models.RoleUdyamMitra)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestListUsersJoinsProfiles(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	dir := identity.NewMemoryDirectory(
		models.IdentityRecord{UID: "A1", Email: "admin@example.org", Role: models.RoleAdmin},
		models.IdentityRecord{UID: "U1", Email: "u1@example.org", DisplayName: "Asha"},
		models.IdentityRecord{UID: "U2", Email: "u2@example.org"},
	)
	require.NoError(t, store.UserProfiles().Upsert(ctx, &models.UserProfile{UID: "U1", UdyamMitraID: "UM-001"}))
	users := NewUserService(dir, store.UserProfiles(), 1000, zap.NewNop())

	list, err := users.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []models.UserSummary{
		{UID: "A1", Email: "admin@example.org", Role: models.RoleAdmin, UdyamMitraID: models.ProfileNotAvailable},
		{UID: "U1", Email: "u1@example.org", DisplayName: "Asha", Role: models.RoleUdyamMitra, UdyamMitraID: "UM-001"},
		{UID: "U2", Email: "u2@example.org", Role: models.RoleUdyamMitra, UdyamMitraID: models.ProfileNotAvailable},
	}, list)

	_, err = users.ListUsers(ctx, agent)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

type duplicatingDirectory struct{ identity.MemoryDirectory }

func (d *duplicatingDirectory) ListUsers(ctx context.Context, limit int) ([]models.IdentityRecord, error) {
	return []models.IdentityRecord{{UID: "U1"}, {UID: "U1"}, {UID: "U3"}}, nil
}

func TestListUsersReturnsEachIdentityOnce(t *testing.T) {
	users := NewUserService(&duplicatingDirectory{}, memstore.New().UserProfiles(), 1000, zap.NewNop())

	list, err := users.ListUsers(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "U1", list[0].UID)
	assert.Equal(t, "U3", list[1].UID)
}

func TestUpsertProfile(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	users := NewUserService(identity.NewMemoryDirectory(), store.UserProfiles(), 1000, zap.NewNop())

	own, err := users.UpsertProfile(ctx, agent, ProfileUpdate{DisplayName: "Asha", UdyamMitraID: "UM-001"})
	require.NoError(t, err)
	assert.Equal(t, "U1", own.UID)
	assert.Equal(t, "u1@example.org", own.Email)
	assert.Equal(t, models.RoleUdyamMitra, own.Role)

	_, err = users.UpsertProfile(ctx, agent, ProfileUpdate{UID: "U2", UdyamMitraID: "UM-002"})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	edited, err := users.UpsertProfile(ctx, admin, ProfileUpdate{UID: "U1", UdyamMitraID: "UM-101"})
	require.NoError(t, err)
	assert.Equal(t, "UM-101", edited.UdyamMitraID)
	assert.Equal(t, "Asha", edited.DisplayName)
	assert.Equal(t, "u1@example.org", edited.Email)
	assert.Equal(t, "U1", edited.Metadata.CreatedBy)
	assert.Equal(t, "A1", edited.Metadata.UpdatedBy)
}

func TestUpsertProfileDefaultsDisplayNameFromToken(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	users := NewUserService(identity.NewMemoryDirectory(), store.UserProfiles(), 1000, zap.NewNop())
	named := &identity.Claims{UID: "U2", Email: "u2@example.org", Name: "Ravi Kumar", Role: models.RoleUdyamMitra}

	profile, err := users.UpsertProfile(ctx, named, ProfileUpdate{UdyamMitraID: "UM-002"})
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", profile.DisplayName)

	profile, err = users.UpsertProfile(ctx, named, ProfileUpdate{DisplayName: "Ravi"})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", profile.DisplayName)

	renamed := *named
	renamed.Name = "R. Kumar"
	profile, err = users.UpsertProfile(ctx, &renamed, ProfileUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", profile.DisplayName)
	assert.Equal(t, "UM-002", profile.UdyamMitraID)
}

func TestPolicy(t *testing.T) {
	assert.NoError(t, RequireAdmin(admin))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(RequireAdmin(agent)))
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(RequireAdmin(nil)))
	assert.NoError(t, RequireSelf(agent, "U1"))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(RequireSelf(agent, "U2")))
	assert.True(t, CanRead(admin, "U9"))
	assert.True(t, CanRead(agent, "U1"))
	assert.False(t, CanRead(agent, "U2"))
	assert.False(t, CanRead(nil, "U1"))
}

func TestIDOrdering(t *testing.T) {
	assert.True(t, idLess("common2", "common10"))
	assert.False(t, idLess("common10", "common2"))
	assert.True(t, idLess("agri1", "eco1"))
}
