package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"kpitracker/apperrors"
	"kpitracker/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var Validate *validator.Validate

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	Validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	mustRegister("period", func(fl validator.FieldLevel) bool {
		return models.ValidPeriod(fl.Field().String())
	})
	mustRegister("kpicategory", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	mustRegister("submissiondate", func(fl validator.FieldLevel) bool {
		return models.ValidSubmissionDate(fl.Field().String())
	})
	mustRegister("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := Validate.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// DecodeAndValidate decodes the request body into v and validates it.
// On failure the response has already been written.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return decodeAndValidate(w, r, v, false)
}

// DecodeAndValidateOptional is DecodeAndValidate for endpoints whose body
// may be omitted entirely.
func DecodeAndValidateOptional(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return decodeAndValidate(w, r, v, true)
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		switch {
		case errors.Is(err, io.EOF) && optional:
		case errors.Is(err, io.EOF):
			HandleMessageResponse(w, "Request body is required", http.StatusBadRequest)
			return err
		default:
			HandleMessageResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return err
		}
	}
	if err := Validate.Struct(v); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			HandleMessageResponse(w, err.Error(), http.StatusBadRequest)
			return err
		}
		errorMessages := make(map[string]string, len(validationErrors))
		for _, e := range validationErrors {
			errorMessages[e.Field()] = e.Tag()
		}
		HandleValidationResponse(w, http.StatusBadRequest, errorMessages)
		return err
	}
	return nil
}

func HandleMessageResponse(w http.ResponseWriter, message string, statusCode int) {
	HandleJSONResponse(w, models.NewMessageResponse(statusCode, message), statusCode)
}

// HandleValidationResponse reports per-field validation failures.
func HandleValidationResponse(w http.ResponseWriter, statusCode int, validationErrors map[string]string) {
	HandleJSONResponse(w, models.NewValidationResponse(statusCode, validationErrors), statusCode)
}

func HandleJSONResponse(w http.ResponseWriter, payload interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// HandleError writes err as a message response with the status of its kind.
// Internal failures are logged and their cause is not exposed.
func HandleError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	HandleMessageResponse(w, apperrors.MessageOf(err), status)
}
