package identity

import (
	"context"
	"encoding/base64"
	"testing"

	"kpitracker/apperrors"
	"kpitracker/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeServiceAccount(t *testing.T) {
	account := `{"type":"service_account","project_id":"kpi-demo","client_email":"svc@kpi-demo.iam.gserviceaccount.com"}`

	raw, err := decodeServiceAccount(base64.StdEncoding.EncodeToString([]byte(account)), "kpi-demo")
	require.NoError(t, err)
	assert.JSONEq(t, account, string(raw))

	raw, err = decodeServiceAccount(account, "kpi-demo")
	require.NoError(t, err)
	assert.JSONEq(t, account, string(raw))
}

func TestDecodeServiceAccountRejects(t *testing.T) {
	_, err := decodeServiceAccount("", "kpi-demo")
	assert.ErrorContains(t, err, "FIREBASE_ADMIN_SDK_CONFIG")

	_, err = decodeServiceAccount("%%%not base64%%%", "kpi-demo")
	assert.ErrorContains(t, err, "neither JSON nor base64")

	_, err = decodeServiceAccount(`{"project_id":"someone-else"}`, "kpi-demo")
	assert.ErrorContains(t, err, "project ID mismatch")
}

func TestRoleFromClaims(t *testing.T) {
	assert.Equal(t, models.RoleAdmin, roleFromClaims(map[string]interface{}{"role": "admin"}))
	assert.Equal(t, models.RoleUdyamMitra, roleFromClaims(nil))
	assert.Equal(t, models.RoleUdyamMitra, roleFromClaims(map[string]interface{}{"role": 7}))
}

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory(
		models.IdentityRecord{UID: "U2", Email: "u2@example.org"},
		models.IdentityRecord{UID: "A1", Role: models.RoleAdmin},
	)

	require.NoError(t, dir.SetRole(ctx, "U2", models.RoleAdmin))
	require.NoError(t, dir.RevokeSessions(ctx, "U2"))
	role, ok := dir.Role("U2")
	assert.True(t, ok)
	assert.Equal(t, models.RoleAdmin, role)
	assert.Equal(t, 1, dir.Revocations("U2"))

	err := dir.SetRole(ctx, "ghost", models.RoleAdmin)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	users, err := dir.ListUsers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "A1", users[0].UID)
}
