package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestValidationError_Err(t *testing.T) {
	v := NewValidationError()
	if v.Err() != nil {
		t.Fatal("expected nil error with no fields")
	}
	v.Add("name", "The name field is required.")
	if v.Err() == nil {
		t.Fatal("expected error once a field is recorded")
	}
	if v.Error() != "validation failed: The name field is required." {
		t.Errorf("unexpected message %q", v.Error())
	}
}

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Invalid("name", "required"), http.StatusUnprocessableEntity},
		{fmt.Errorf("get patient: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("purge facility: %w", ErrConflict), http.StatusConflict},
		{echo.NewHTTPError(http.StatusBadRequest, "invalid id"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("Status(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHTTPErrorHandler_Validation(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop())(Invalid("facility_id", "The selected facility id is invalid."), c)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message != InvalidDataMessage {
		t.Errorf("unexpected message %q", body.Message)
	}
	if len(body.Errors["facility_id"]) != 1 {
		t.Errorf("expected facility_id error, got %v", body.Errors)
	}
}

func TestHTTPErrorHandler_InternalHidesDetail(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop())(errors.New("connection refused"), c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["message"] != "Internal Server Error" {
		t.Errorf("unexpected message %q", body["message"])
	}
}
