package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	middleware "kpitracker/middlewares"
	"kpitracker/models"
	service "kpitracker/services"
	"kpitracker/utils"

	"go.uber.org/zap"
)

type SetUserRoleRequest struct {
	UID  string `json:"uid" validate:"required"`
	Role string `json:"role" validate:"required,role"`
}

type ProfileRequest struct {
	UID          string `json:"uid"`
	DisplayName  string `json:"displayName" validate:"max=200"`
	UdyamMitraID string `json:"udyamMitraId" validate:"max=64"`
}

type UserHandler struct {
	users   service.UserService
	log     *zap.Logger
	timeout time.Duration
}

func NewUserHandler(users service.UserService, log *zap.Logger, timeout time.Duration) *UserHandler {
	return &UserHandler{
		users:   users,
		log:     log,
		timeout: timeout,
	}
}

func (h *UserHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var req SetUserRoleRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	err := h.users.SetUserRole(ctx, middleware.ClaimsFromContext(r.Context()), req.UID, models.Role(req.Role))
	if err != nil {
		utils.HandleError(w, r, h.log, err)
		return
	}

	utils.HandleMessageResponse(w, fmt.Sprintf("Role %s assigned to user %s", req.Role, req.UID), http.StatusOK)
}

func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	users, err := h.users.ListUsers(ctx, middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		utils.HandleError(w, r, h.log, err)
		return
	}

	utils.HandleJSONResponse(w, users, http.StatusOK)
}

func (h *UserHandler) UpsertUserProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	profile, err := h.users.UpsertProfile(ctx, middleware.ClaimsFromContext(r.Context()), service.ProfileUpdate{
		UID:          req.UID,
		DisplayName:  req.DisplayName,
		UdyamMitraID: req.UdyamMitraID,
	})
	if err != nil {
		utils.HandleError(w, r, h.log, err)
		return
	}

	utils.HandleJSONResponse(w, models.ProfileResponse{
		Message: "Profile saved successfully",
		Profile: *profile,
	}, http.StatusOK)
}
