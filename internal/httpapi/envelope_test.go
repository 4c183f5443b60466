package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
)

func TestWriteErrorUsesApierrCodeAndKindStatus(t *testing.T) {
	rw := httptest.NewRecorder()
	writeError(rw, apierr.New(apierr.NotFound, "NOZZLE_NOT_FOUND", "nozzle does not exist"))

	if rw.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Result().StatusCode)
	}

	var body envelope
	if err := json.NewDecoder(rw.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Success {
		t.Fatal("expected success=false")
	}
	if body.Error.Code != "NOZZLE_NOT_FOUND" {
		t.Fatalf("expected error code NOZZLE_NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestWriteErrorFallsBackToInternalForPlainError(t *testing.T) {
	rw := httptest.NewRecorder()
	writeError(rw, errors.New("boom"))

	if rw.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Result().StatusCode)
	}
}

func TestStatusForKind(t *testing.T) {
	cases := map[apierr.Kind]int{
		apierr.Validation:       http.StatusBadRequest,
		apierr.NoPrice:          http.StatusConflict,
		apierr.TankInsufficient: http.StatusConflict,
		apierr.Conflict:         http.StatusConflict,
		apierr.Unauthenticated:  http.StatusUnauthorized,
		apierr.Forbidden:        http.StatusForbidden,
		apierr.NotFound:         http.StatusNotFound,
		apierr.QuotaExceeded:    http.StatusTooManyRequests,
		apierr.External:         http.StatusBadGateway,
		apierr.Internal:         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := statusForKind(kind); got != want {
			t.Errorf("statusForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"foo":"bar"}`))
	var dst struct {
		Known string `json:"known"`
	}
	err := decodeJSON(req, &dst)
	if err == nil {
		t.Fatal("expected an error for an unknown field")
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Kind != apierr.Validation {
		t.Fatalf("expected a Validation apierr.Error, got %v", err)
	}
}
