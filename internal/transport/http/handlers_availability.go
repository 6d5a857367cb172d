package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"courseflow/internal/availability"
	"courseflow/internal/platform/middleware"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
)

// AvailabilityHandler exposes the instructor calendar.
type AvailabilityHandler struct {
	svc *availability.Service
}

func NewAvailabilityHandler(svc *availability.Service) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

func (h *AvailabilityHandler) Register(r chi.Router) {
	r.Post("/availability", h.open)
	r.Get("/availability/{instructorID}", h.list)
}

type openAvailabilityRequest struct {
	InstructorID string `json:"instructor_id"`
	Date         string `json:"date"`
}

func (h *AvailabilityHandler) open(w http.ResponseWriter, r *http.Request) {
	var req openAvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	instructorID, err := domain.ParseActorID(req.InstructorID)
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := domain.ParseCalendarDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.GetActor(r.Context())
	entry, err := h.svc.Open(r.Context(), actor, instructorID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *AvailabilityHandler) list(w http.ResponseWriter, r *http.Request) {
	instructorID, err := domain.ParseActorID(chi.URLParam(r, "instructorID"))
	if err != nil {
		writeError(w, err)
		return
	}
	fromParam := r.URL.Query().Get("from")
	if fromParam == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "from query parameter is required"))
		return
	}
	from, err := domain.ParseCalendarDate(fromParam)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.svc.ListAvailable(r.Context(), instructorID, from)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, toEntryResponses(entries))
}
