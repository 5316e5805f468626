package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/tasky/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError([]string{"Title is required"}))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Success {
		t.Error("success should be false")
	}
	if body.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidation)
	}
	if len(body.Errors) != 1 || body.Errors[0] != "Title is required" {
		t.Errorf("errors = %v, want [Title is required]", body.Errors)
	}
}

func TestWriteErrorResponse_OmitsEmptyOptionalFields(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError())

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if raw["success"] != false {
		t.Errorf("success = %v, want false", raw["success"])
	}
	if raw["message"] != "Task not found" {
		t.Errorf("message = %v, want %q", raw["message"], "Task not found")
	}
	if _, ok := raw["errors"]; ok {
		t.Error("errors should be omitted")
	}
	if _, ok := raw["retryAfter"]; ok {
		t.Error("retryAfter should be omitted")
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"validation", model.NewValidationError(nil), http.StatusBadRequest},
		{"all fields", model.NewAllFieldsRequiredError(), http.StatusBadRequest},
		{"invalid id", model.NewInvalidTaskIDError(), http.StatusBadRequest},
		{"invalid code", model.NewInvalidCodeError(), http.StatusBadRequest},
		{"otp expired", model.NewOTPExpiredError(), http.StatusBadRequest},
		{"invalid pet", model.NewInvalidPetError(), http.StatusBadRequest},
		{"unauthorized", model.NewUnauthorizedError("x"), http.StatusUnauthorized},
		{"invalid credential", model.NewInvalidCredentialError(), http.StatusUnauthorized},
		{"user not found", model.NewUserNotFoundError(), http.StatusNotFound},
		{"task not found", model.NewTaskNotFoundError(), http.StatusNotFound},
		{"already exists", model.NewAlreadyExistsError(), http.StatusConflict},
		{"already verified", model.NewAlreadyVerifiedError(), http.StatusConflict},
		{"rate limited", model.NewRateLimitedError("x", 3), http.StatusTooManyRequests},
		{"internal", model.NewInternalError(), http.StatusInternalServerError},
		{"unknown", &model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusForError(tt.err); got != tt.want {
				t.Errorf("StatusForError(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestInternalServerError_ReturnsGenericMessage(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if body.Message != "Internal server error" {
		t.Errorf("message = %q, want %q", body.Message, "Internal server error")
	}
}
