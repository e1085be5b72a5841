package models

type MessageResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

type ValidationResponse struct {
	StatusCode int               `json:"status_code"`
	Errors     map[string]string `json:"errors"`
}

func NewMessageResponse(statusCode int, message string) MessageResponse {
	return MessageResponse{
		StatusCode: statusCode,
		Message:    message,
	}
}

func NewValidationResponse(statusCode int, errors map[string]string) ValidationResponse {
	return ValidationResponse{
		StatusCode: statusCode,
		Errors:     errors,
	}
}

type SubmissionResponse struct {
	Message    string     `json:"message"`
	UpdatedKPI Assignment `json:"updatedKpi"`
}

type AssignmentResponse struct {
	Message    string          `json:"message"`
	Assignment AssignmentBatch `json:"assignment"`
}

type MasterKPIResponse struct {
	Message string    `json:"message"`
	KPI     MasterKPI `json:"kpi"`
}

type ProfileResponse struct {
	Message string      `json:"message"`
	Profile UserProfile `json:"profile"`
}
