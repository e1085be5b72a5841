package handlers

import (
	"context"
	"net/http"
	"time"

	middleware "kpitracker/middlewares"
	"kpitracker/models"
	service "kpitracker/services"
	"kpitracker/utils"

	"go.uber.org/zap"
)

type GetKPIsRequest struct {
	RequestedUID string `json:"requestedUid"`
	MonthYear    string `json:"monthYear" validate:"omitempty,period"`
}

type SubmissionRequest struct {
	KPIID               string          `json:"kpiId" validate:"required"`
	SubmittedValue      *models.Measure `json:"submittedValue" validate:"required"`
	UdyamMitraID        string          `json:"udyamMitraId" validate:"required"`
	SubmissionDate      string          `json:"submissionDate" validate:"required,submissiondate"`
	SubmissionMonthYear string          `json:"submissionMonthYear" validate:"required,period"`
}

// AssignmentRequest accepts both field spellings the dashboard has used.
type AssignmentRequest struct {
	UdyamMitraUID  string   `json:"udyamMitraUid"`
	UdyamMitraID   string   `json:"udyamMitraId"`
	AssignedKPIIDs []string `json:"assignedKpiIds"`
	KPIIDs         []string `json:"kpiIds"`
	MonthYear      string   `json:"monthYear" validate:"required,period"`
}

func (r AssignmentRequest) agentUID() string {
	if r.UdyamMitraUID != "" {
		return r.UdyamMitraUID
	}
	return r.UdyamMitraID
}

func (r AssignmentRequest) kpiIDs() []string {
	if len(r.AssignedKPIIDs) > 0 {
		return r.AssignedKPIIDs
	}
	return r.KPIIDs
}

type PeriodRequest struct {
	MonthYear string `json:"monthYear" validate:"omitempty,period"`
}

type KPIHandler struct {
	kpis        service.KPIService
	submissions service.SubmissionService
	assignments service.AssignmentService
	log         *zap.Logger
	timeout     time.Duration
}

func NewKPIHandler(kpis service.KPIService, submissions service.SubmissionService, assignments service.AssignmentService, log *zap.Logger, timeout time.Duration) *KPIHandler {
	return &KPIHandler{
		kpis:        kpis,
		submissions: submissions,
		assignments: assignments,
		log:         log,
		timeout:     timeout,
	}
}

func (h *KPIHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	var req GetKPIsRequest
	if err := utils.DecodeAndValidateOptional(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	views, err := h.kpis.GetKPIs(ctx, middleware.ClaimsFromContext(r.Context()), req.RequestedUID, req.MonthYear)
	if err != nil {
		utils.HandleError(w, r, h.log, err)
		return
	}

	utils.HandleJSONResponse(w, views, http.StatusOK)
}

func (h *KPIHandler) UpdateKPISubmission(w http.ResponseWriter, r *http.Request) {
	var req SubmissionRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	updated, err := h.submissions.SubmitKPI(ctx, middleware.ClaimsFromContext(r.Context()), service.Submission{
		KPIID:          req.KPIID,
		Value:          *req.SubmittedValue,
		UdyamMitraID:   req.UdyamMitraID,
		SubmissionDate: req.SubmissionDate,
		Period:         req.SubmissionMonthYear,
	})
	if err != nil {
		utils.HandleError(w, r, h.log, err)
		return
	}

	utils.HandleJSONResponse(w, models.SubmissionResponse{
		Message:    "KPI submission updated successfully",
		UpdatedKPI: *updated,
	}, http.StatusOK)
}

func (h *KPIHandler) AssignKPIsToUser(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	batch, err := h.assignments.AssignKPIs(ctx, middleware.ClaimsFromContext(r.Context()), req.agentUID(), req.kpiIDs(), req.MonthYear)
	if err != nil {
		utils.HandleError(w, r, h.log, err)
		return
	}

	utils.HandleJSONResponse(w, models.AssignmentResponse{
		Message:    "KPIs assigned successfully",
		Assignment: *batch,
	}, http.StatusOK)
}

func (h *KPIHandler) UpsertMasterKPI(w http.ResponseWriter, r *http.Request) {
	var kpi models.MasterKPI
	if err := utils.DecodeAndValidate(w, r, &kpi); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	saved, err := h.kpis.UpsertMasterKPI(ctx, middleware.ClaimsFromContext(r.Context()), kpi)
	if err != nil {
		utils.HandleError(w, r, h.log, err)
		return
	}

	utils.HandleJSONResponse(w, models.MasterKPIResponse{
		Message: "Master KPI saved successfully",
		KPI:     *saved,
	}, http.StatusOK)
}

func (h *KPIHandler) GetPeriodSummary(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if err := utils.DecodeAndValidateOptional(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.kpis.SummarizePeriod(ctx, middleware.ClaimsFromContext(r.Context()), req.MonthYear)
	if err != nil {
		utils.HandleError(w, r, h.log, err)
		return
	}

	utils.HandleJSONResponse(w, summary, http.StatusOK)
}
