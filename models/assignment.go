package models

import (
	"time"
)

type SubmissionType string

const (
	SubmissionInitial SubmissionType = "initial"
	SubmissionUpdate  SubmissionType = "update"
)

// Assignment binds a master KPI to an agent for one period and records the
// agent's value. Display fields are copied from the master KPI at creation.
type Assignment struct {
	ID                string            `json:"id" bson:"_id"`
	AgentUID          string            `json:"udyamMitraUid" bson:"agent_uid"`
	KPIID             string            `json:"kpiId" bson:"kpi_id"`
	Period            string            `json:"monthYear" bson:"period"`
	KPIName           string            `json:"kpiName" bson:"kpi_name"`
	Description       string            `json:"description" bson:"description"`
	MonthlyTarget     Measure           `json:"monthlyTarget" bson:"monthly_target"`
	ReportingFormat   string            `json:"reportingFormat" bson:"reporting_format"`
	Category          Category          `json:"category" bson:"category"`
	CurrentValue      Measure           `json:"currentValue" bson:"current_value"`
	SubmissionHistory []SubmissionEntry `json:"submissionHistory" bson:"submission_history"`
	AssignedBy        string            `json:"assignedBy,omitempty" bson:"assigned_by,omitempty"`
	Metadata          Metadata          `json:"metadata" bson:"metadata"`
}

type SubmissionEntry struct {
	Value            Measure        `json:"value" bson:"value"`
	SubmissionDate   string         `json:"date" bson:"submission_date"`
	Period           string         `json:"monthYear" bson:"period"`
	UdyamMitraID     string         `json:"udyamMitraId" bson:"udyam_mitra_id"`
	SubmittedByUID   string         `json:"submittedByUid" bson:"submitted_by_uid"`
	SubmittedByEmail string         `json:"submittedByEmail" bson:"submitted_by_email"`
	SubmissionType   SubmissionType `json:"submissionType" bson:"submission_type"`
	RecordedAt       time.Time      `json:"recordedAt" bson:"recorded_at"`
}

// AssignmentID is the composite document key of (agent, KPI, period).
func AssignmentID(agentUID, kpiID, period string) string {
	return agentUID + ":" + kpiID + ":" + period
}

// NewAssignment seeds an assignment at value zero with display fields copied from master.
func NewAssignment(agentUID string, master MasterKPI, period string) Assignment {
	return Assignment{
		ID:                AssignmentID(agentUID, master.ID, period),
		AgentUID:          agentUID,
		KPIID:             master.ID,
		Period:            period,
		KPIName:           master.KPIName,
		Description:       master.Description,
		MonthlyTarget:     master.MonthlyTarget,
		ReportingFormat:   master.ReportingFormat,
		Category:          master.Category,
		CurrentValue:      Numeric(0),
		SubmissionHistory: []SubmissionEntry{},
	}
}

// Explicit reports whether an admin assigned the KPI. Documents created by a
// submission for an unassigned KPI carry no AssignedBy.
func (a Assignment) Explicit() bool {
	return a.AssignedBy != ""
}

// Denormalized returns the master KPI as it was copied into the assignment.
func (a Assignment) Denormalized() MasterKPI {
	return MasterKPI{
		ID:              a.KPIID,
		KPIName:         a.KPIName,
		Description:     a.Description,
		MonthlyTarget:   a.MonthlyTarget,
		ReportingFormat: a.ReportingFormat,
		Category:        a.Category,
	}
}

// AssignmentBatch is the response shape of a batch assignment.
type AssignmentBatch struct {
	AgentUID       string    `json:"udyamMitraUid"`
	Period         string    `json:"monthYear"`
	AssignedKPIIDs []string  `json:"assignedKpiIds"`
	LastUpdated    time.Time `json:"lastUpdated"`
}
