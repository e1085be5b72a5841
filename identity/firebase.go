package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"kpitracker/apperrors"
	"kpitracker/config"
	"kpitracker/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// FirebaseDirectory manages identity records through the Firebase Admin SDK.
type FirebaseDirectory struct {
	client *auth.Client
}

func NewFirebaseDirectory(ctx context.Context, cfg config.IdentityConfig) (*FirebaseDirectory, error) {
	credentials, err := decodeServiceAccount(cfg.Credentials, cfg.ProjectID)
	if err != nil {
		return nil, err
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, option.WithCredentialsJSON(credentials))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase Admin SDK: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firebase auth client: %w", err)
	}
	return &FirebaseDirectory{client: client}, nil
}

// decodeServiceAccount accepts the service account JSON either raw or base64
// encoded and checks it belongs to projectID.
func decodeServiceAccount(encoded, projectID string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errors.New("identity.credentials (FIREBASE_ADMIN_SDK_CONFIG) is not set")
	}

	raw := []byte(encoded)
	if !strings.HasPrefix(encoded, "{") {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("service account config is neither JSON nor base64: %w", err)
		}
		raw = decoded
	}

	var account struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, fmt.Errorf("parse service account config: %w", err)
	}
	if account.ProjectID != "" && account.ProjectID != projectID {
		return nil, fmt.Errorf("service account project ID mismatch: expected %s, got %s", projectID, account.ProjectID)
	}
	return raw, nil
}

func (d *FirebaseDirectory) SetRole(ctx context.Context, uid string, role models.Role) error {
	err := d.client.SetCustomUserClaims(ctx, uid, map[string]interface{}{"role": string(role)})
	return classify(err, uid, "failed to set role claim")
}

func (d *FirebaseDirectory) RevokeSessions(ctx context.Context, uid string) error {
	return classify(d.client.RevokeRefreshTokens(ctx, uid), uid, "failed to revoke sessions")
}

func (d *FirebaseDirectory) ListUsers(ctx context.Context, limit int) ([]models.IdentityRecord, error) {
	records := make([]models.IdentityRecord, 0, limit)
	it := d.client.Users(ctx, "")
	for len(records) < limit {
		user, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, apperrors.Internal(err, "failed to list users")
		}
		records = append(records, models.IdentityRecord{
			UID:         user.UID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Role:        roleFromClaims(user.CustomClaims),
		})
	}
	return records, nil
}

func roleFromClaims(claims map[string]interface{}) models.Role {
	role, _ := claims["role"].(string)
	return models.RoleOrDefault(role)
}

func classify(err error, uid, message string) error {
	if err == nil {
		return nil
	}
	if auth.IsUserNotFound(err) {
		return apperrors.NotFound("user %s not found", uid)
	}
	return apperrors.Internal(err, message)
}
