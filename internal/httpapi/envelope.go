package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
)

// envelope is the §9 response shape: every success response carries
// {success, data}, every failure {success:false, error:{code,message}}.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func created(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

// writeError maps an apierr.Error (or any other error) to an HTTP status
// and the §9 error envelope.
func writeError(w http.ResponseWriter, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		writeJSON(w, statusForKind(ae.Kind), envelope{Success: false, Error: &errorBody{Code: ae.Code, Message: ae.Message}})
		return
	}
	writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: &errorBody{Code: "INTERNAL", Message: "internal error"}})
}

func statusForKind(k apierr.Kind) int {
	switch k {
	case apierr.NotFound:
		return http.StatusNotFound
	case apierr.Validation:
		return http.StatusBadRequest
	case apierr.Conflict, apierr.NoPrice, apierr.TankInsufficient:
		return http.StatusConflict
	case apierr.Unauthenticated:
		return http.StatusUnauthorized
	case apierr.Forbidden:
		return http.StatusForbidden
	case apierr.QuotaExceeded:
		return http.StatusTooManyRequests
	case apierr.External:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierr.Validationf("MALFORMED_BODY", "malformed request body: %v", err)
	}
	return nil
}
