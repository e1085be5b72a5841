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

// Submission is an agent's reported value for one KPI and period.
type Submission struct {
	KPIID          string
	Value          models.Measure
	UdyamMitraID   string
	SubmissionDate string
	Period         string
}

type SubmissionService interface {
	SubmitKPI(ctx context.Context, caller *identity.Claims, submission Submission) (*models.Assignment, error)
}

type submissionService struct {
	masters         repository.MasterKPIRepository
	assignments     repository.AssignmentRepository
	allowUnassigned bool
	log             *zap.Logger
	now             func() time.Time
}

// NewSubmissionService returns the submission workflow. With allowUnassigned
// set, a value for a KPI the agent was never assigned creates the assignment.
func NewSubmissionService(masters repository.MasterKPIRepository, assignments repository.AssignmentRepository, allowUnassigned bool, log *zap.Logger) SubmissionService {
	return &submissionService{
		masters:         masters,
		assignments:     assignments,
		allowUnassigned: allowUnassigned,
		log:             log,
		now:             time.Now,
	}
}

func (s *submissionService) SubmitKPI(ctx context.Context, caller *identity.Claims, sub Submission) (*models.Assignment, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}
	if err := RequireSelf(caller, sub.UdyamMitraID); err != nil {
		return nil, err
	}

	entry := models.SubmissionEntry{
		Value:            sub.Value,
		SubmissionDate:   sub.SubmissionDate,
		Period:           sub.Period,
		UdyamMitraID:     sub.UdyamMitraID,
		SubmittedByUID:   caller.UID,
		SubmittedByEmail: caller.Email,
		SubmissionType:   models.SubmissionUpdate,
		RecordedAt:       s.now(),
	}

	seed, err := s.assignments.GetByKey(ctx, sub.UdyamMitraID, sub.KPIID, sub.Period)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if seed, err = s.unassignedSeed(ctx, sub); err != nil {
			return nil, err
		}
		entry.SubmissionType = models.SubmissionInitial
	case err != nil:
		return nil, apperrors.Internal(err, "Failed to load KPI assignment")
	}

	updated, err := s.assignments.RecordSubmission(ctx, seed, entry)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to save KPI submission")
	}
	s.log.Info("KPI submission recorded",
		zap.String("uid", sub.UdyamMitraID),
		zap.String("kpi_id", sub.KPIID),
		zap.String("period", sub.Period),
		zap.String("type", string(entry.SubmissionType)),
		zap.Int("history", len(updated.SubmissionHistory)),
	)
	return updated, nil
}

func (s *submissionService) unassignedSeed(ctx context.Context, sub Submission) (*models.Assignment, error) {
	if !s.allowUnassigned {
		return nil, apperrors.NotFound("KPI not assigned")
	}
	master, err := s.masters.GetByID(ctx, sub.KPIID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("KPI %s not found", sub.KPIID)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to load master KPI")
	}

	s.log.Warn("Submission for unassigned KPI, creating assignment",
		zap.String("uid", sub.UdyamMitraID), zap.String("kpi_id", sub.KPIID), zap.String("period", sub.Period))
	seed := models.NewAssignment(sub.UdyamMitraID, *master, sub.Period)
	return &seed, nil
}

func validateSubmission(sub Submission) error {
	switch {
	case sub.KPIID == "", sub.UdyamMitraID == "", sub.SubmissionDate == "", sub.Period == "":
		return apperrors.InvalidRequest("kpiId, submittedValue, udyamMitraId, submissionDate and submissionMonthYear are required")
	case sub.Value.IsBlank():
		return apperrors.InvalidRequest("submittedValue must not be empty")
	case !models.ValidPeriod(sub.Period):
		return apperrors.InvalidRequest("submissionMonthYear must be formatted YYYY-MM")
	case !models.ValidSubmissionDate(sub.SubmissionDate):
		return apperrors.InvalidRequest("submissionDate must be an RFC 3339 timestamp or YYYY-MM-DD")
	}
	return nil
}
