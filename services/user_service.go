package services

import (
	"context"
	"errors"
	"time"

	"kpitracker/apperrors"
	"kpitracker/identity"
	"kpitracker/models"
	repository "kpitracker/repositories"

	"go.uber.org/zap"
)

// Directory is the identity provider's user registry.
type Directory interface {
	SetRole(ctx context.Context, uid string, role models.Role) error
	RevokeSessions(ctx context.Context, uid string) error
	ListUsers(ctx context.Context, limit int) ([]models.IdentityRecord, error)
}

// ProfileUpdate carries the caller-editable profile fields. An empty UID means the caller.
type ProfileUpdate struct {
	UID          string
	DisplayName  string
	UdyamMitraID string
}

type UserService interface {
	SetUserRole(ctx context.Context, caller *identity.Claims, uid string, role models.Role) error
	ListUsers(ctx context.Context, caller *identity.Claims) ([]models.UserSummary, error)
	UpsertProfile(ctx context.Context, caller *identity.Claims, update ProfileUpdate) (*models.UserProfile, error)
}

type userService struct {
	directory Directory
	profiles  repository.UserProfileRepository
	limit     int
	log       *zap.Logger
	now       func() time.Time
}

func NewUserService(directory Directory, profiles repository.UserProfileRepository, listLimit int, log *zap.Logger) UserService {
	return &userService{
		directory: directory,
		profiles:  profiles,
		limit:     listLimit,
		log:       log,
		now:       time.Now,
	}
}

// SetUserRole sets the role claim and revokes uid's sessions so the next
// token refresh carries it. The profile mirror is best effort.
func (s *userService) SetUserRole(ctx context.Context, caller *identity.Claims, uid string, role models.Role) error {
	if err := RequireAdmin(caller); err != nil {
		return err
	}
	if uid == "" {
		return apperrors.InvalidRequest("uid is required")
	}
	if !role.Valid() {
		return apperrors.InvalidRequest("role must be one of udyamMitra, admin")
	}

	if err := s.directory.SetRole(ctx, uid, role); err != nil {
		return err
	}
	if err := s.directory.RevokeSessions(ctx, uid); err != nil {
		return err
	}
	s.log.Info("User role updated", zap.String("uid", uid), zap.String("role", string(role)), zap.String("by", caller.UID))

	if err := s.profiles.SetRole(ctx, uid, role, caller.UID); err != nil {
		s.log.Warn("Failed to mirror role into profile", zap.String("uid", uid), zap.Error(err))
	}
	return nil
}

func (s *userService) ListUsers(ctx context.Context, caller *identity.Claims) ([]models.UserSummary, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}

	records, err := s.directory.ListUsers(ctx, s.limit)
	if err != nil {
		return nil, err
	}

	uids := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if !seen[rec.UID] {
			seen[rec.UID] = true
			uids = append(uids, rec.UID)
		}
	}
	profiles, err := s.profiles.GetByIDs(ctx, uids)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load user profiles")
	}

	users := make([]models.UserSummary, 0, len(uids))
	listed := make(map[string]bool, len(uids))
	for _, rec := range records {
		if listed[rec.UID] {
			continue
		}
		listed[rec.UID] = true

		udyamMitraID := models.ProfileNotAvailable
		if profile, ok := profiles[rec.UID]; ok && profile.UdyamMitraID != "" {
			udyamMitraID = profile.UdyamMitraID
		}
		role := rec.Role
		if role == "" {
			role = models.RoleUdyamMitra
		}
		users = append(users, models.UserSummary{
			UID:          rec.UID,
			Email:        rec.Email,
			DisplayName:  rec.DisplayName,
			Role:         role,
			UdyamMitraID: udyamMitraID,
		})
	}
	return users, nil
}

func (s *userService) UpsertProfile(ctx context.Context, caller *identity.Claims, update ProfileUpdate) (*models.UserProfile, error) {
	if caller == nil {
		return nil, apperrors.Unauthenticated("Authentication required")
	}
	uid := update.UID
	if uid == "" {
		uid = caller.UID
	}
	self := uid == caller.UID
	if !self {
		if err := RequireAdmin(caller); err != nil {
			return nil, err
		}
	}

	now := s.now()
	profile := models.UserProfile{UID: uid, Role: models.RoleUdyamMitra}
	profile.Metadata.CreatedAt = now
	profile.Metadata.CreatedBy = caller.UID

	existing, err := s.profiles.GetByID(ctx, uid)
	switch {
	case err == nil:
		profile = *existing
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err, "Failed to load user profile")
	}

	if self {
		profile.Email = caller.Email
		profile.Role = caller.Role
		if profile.DisplayName == "" {
			profile.DisplayName = caller.Name
		}
	}
	if update.DisplayName != "" {
		profile.DisplayName = update.DisplayName
	}
	if update.UdyamMitraID != "" {
		profile.UdyamMitraID = update.UdyamMitraID
	}
	profile.Metadata.UpdatedAt = now
	profile.Metadata.UpdatedBy = caller.UID

	if err := s.profiles.Upsert(ctx, &profile); err != nil {
		return nil, apperrors.Internal(err, "Failed to save user profile")
	}
	return &profile, nil
}
