package database

import (
	"context"
	"testing"

	"kpitracker/models"
	"kpitracker/repositories/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReferenceMasterKPIs(t *testing.T) {
	kpis := ReferenceMasterKPIs()
	require.Len(t, kpis, 29)

	seen := map[string]bool{}
	perCategory := map[models.Category]int{}
	for _, kpi := range kpis {
		assert.False(t, seen[kpi.ID], "duplicate id %s", kpi.ID)
		seen[kpi.ID] = true
		assert.True(t, kpi.Category.Valid(), kpi.ID)
		assert.NotEmpty(t, kpi.KPIName, kpi.ID)
		perCategory[kpi.Category]++
	}
	assert.Equal(t, map[models.Category]int{
		models.CategoryCommon:      14,
		models.CategoryEcosystem:   6,
		models.CategoryHospitality: 4,
		models.CategoryAgriForest:  2,
		models.CategoryDBMSMIS:     3,
	}, perCategory)

	assert.Equal(t, "Enterprise Interactions (Field Visits)", kpis[0].KPIName)
	target, ok := kpis[0].MonthlyTarget.Number()
	assert.True(t, ok)
	assert.Equal(t, float64(10), target)
	assert.Equal(t, "As per deployment", kpis[11].MonthlyTarget.Text())
}

func TestSeedMasterKPIsOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New().MasterKPIs()

	require.NoError(t, SeedMasterKPIs(ctx, repo, zap.NewNop()))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(29), count)

	seeded, err := repo.GetByID(ctx, "dbms3")
	require.NoError(t, err)
	assert.Equal(t, "system", seeded.Metadata.CreatedBy)
	assert.Equal(t, "Continuous", seeded.MonthlyTarget.Text())

	// A second run leaves the catalogue untouched.
	require.NoError(t, SeedMasterKPIs(ctx, repo, zap.NewNop()))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(29), count)
}
