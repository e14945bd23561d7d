// Package api provides HTTP handlers for the tutoring API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/avilov/tutorlab/internal/audit"
	"github.com/avilov/tutorlab/internal/device"
	"github.com/avilov/tutorlab/internal/provider"
	"github.com/avilov/tutorlab/internal/tutor"
	"github.com/go-playground/validator/v10"
)

// Handler provides common handler utilities and dependencies.
type Handler struct {
	tutor       *tutor.Service
	auditor     *audit.Logger
	classifier  device.Classifier
	validate    *validator.Validate
	maxBodySize int64
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(svc *tutor.Service, auditor *audit.Logger, classifier device.Classifier, maxBodySize int64) *Handler {
	if classifier == nil {
		classifier = device.HeaderClassifier{}
	}
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &Handler{
		tutor:       svc,
		auditor:     auditor,
		classifier:  classifier,
		validate:    validator.New(),
		maxBodySize: maxBodySize,
	}
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// JSON writes a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Data: v})
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope{Success: false, Error: message})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		http.Error(w, `{"success":false,"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// WriteError maps an error from the core onto a category-appropriate
// status: validation 400, authorization 403, missing provider 503,
// upstream provider failure 502, everything else 500.
func WriteError(w http.ResponseWriter, err error) {
	var verr *tutor.ValidationError
	var aerr *tutor.AuthorizationError
	var perr *provider.Error

	switch {
	case errors.As(err, &verr):
		Error(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &aerr):
		Error(w, http.StatusForbidden, aerr.Error())
	case errors.Is(err, provider.ErrNoProviderConfigured):
		Error(w, http.StatusServiceUnavailable, "no LLM provider configured")
	case errors.As(err, &perr):
		Error(w, http.StatusBadGateway, perr.Error())
	default:
		slog.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody decodes a JSON request body into v and validates it.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		Error(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0]
		if field.Tag() == "required" {
			return field.Field() + " is required"
		}
		return "invalid value for " + field.Field()
	}
	return "invalid request body"
}
