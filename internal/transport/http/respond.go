package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "courseflow/pkg/domain-errors"
)

// okEnvelope and errorEnvelope are the only two response shapes the API
// produces.
type okEnvelope struct {
	OK any `json:"ok"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func writeOK(w http.ResponseWriter, status int, entity any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(okEnvelope{OK: entity})
}

// statusOf maps error kinds onto HTTP statuses so clients can tell "retry
// me" (503) from "fix your request" (409/422) from "you can't do this"
// (401/403).
func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotAuthenticated:
		return http.StatusUnauthorized
	case dErrors.CodeWrongOrganization, dErrors.CodeWrongRole, dErrors.CodeWrongOwner:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeDuplicatePayment, dErrors.CodeDuplicateRegistration:
		return http.StatusConflict
	case dErrors.CodeSlotUnavailable, dErrors.CodeInvalidTransition,
		dErrors.CodeCourseFull, dErrors.CodeCourseNotCompleted:
		return http.StatusUnprocessableEntity
	case dErrors.CodeTransitionAborted:
		return http.StatusServiceUnavailable
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	detail := "internal server error"
	var de *dErrors.Error
	if errors.As(err, &de) && code != dErrors.CodeInternal {
		detail = de.Message
	}

	w.Header().Set("Content-Type", "application/json")
	if dErrors.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(statusOf(code))
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Kind:   string(code),
		Detail: detail,
	}})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
