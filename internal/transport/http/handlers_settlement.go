package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"courseflow/internal/platform/middleware"
	"courseflow/internal/settlement"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
)

// SettlementHandler exposes payment recording, payment lifecycle transitions
// and per-organization settlement summaries.
type SettlementHandler struct {
	svc *settlement.Service
}

func NewSettlementHandler(svc *settlement.Service) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

func (h *SettlementHandler) Register(r chi.Router) {
	r.Post("/payments", h.record)
	r.Get("/payments/{paymentID}", h.get)
	r.Post("/payments/{paymentID}/transition", h.transition)
	r.Get("/organizations/{orgID}/settlement-summary", h.summarize)
}

type recordPaymentRequest struct {
	CourseInstanceID string `json:"course_instance_id"`
	AmountCents      int64  `json:"amount_cents"`
	Method           string `json:"method"`
}

func (h *SettlementHandler) record(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	courseID, err := domain.ParseCourseInstanceID(req.CourseInstanceID)
	if err != nil {
		writeError(w, err)
		return
	}
	method, err := settlement.ParseMethod(req.Method)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.GetActor(r.Context())
	payment, err := h.svc.RecordPayment(r.Context(), actor, settlement.RecordRequest{
		CourseInstanceID: courseID,
		AmountCents:      req.AmountCents,
		Method:           method,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *SettlementHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	payment, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *SettlementHandler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	to, err := settlement.ParseStatus(req.To)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.GetActor(r.Context())
	payment, err := h.svc.Transition(r.Context(), actor, id, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *SettlementHandler) summarize(w http.ResponseWriter, r *http.Request) {
	orgID, err := domain.ParseOrganizationID(chi.URLParam(r, "orgID"))
	if err != nil {
		writeError(w, err)
		return
	}
	query := r.URL.Query()
	if query.Get("from") == "" || query.Get("to") == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "from and to query parameters are required"))
		return
	}
	from, err := domain.ParseCalendarDate(query.Get("from"))
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := domain.ParseCalendarDate(query.Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.GetActor(r.Context())
	summary, err := h.svc.Summarize(r.Context(), actor, orgID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, toSummaryResponse(summary))
}
