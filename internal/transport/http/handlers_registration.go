package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"courseflow/internal/platform/middleware"
	"courseflow/internal/registration"
	"courseflow/pkg/domain"
)

// RegistrationHandler exposes the per-course student ledger: registrations,
// attendance and certifications.
type RegistrationHandler struct {
	svc *registration.Service
}

func NewRegistrationHandler(svc *registration.Service) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

func (h *RegistrationHandler) Register(r chi.Router) {
	r.Post("/courses/{courseID}/registrations", h.register)
	r.Get("/courses/{courseID}/registrations", h.list)
	r.Post("/courses/{courseID}/registrations/{studentID}/confirm", h.confirm)
	r.Put("/courses/{courseID}/attendance/{studentID}", h.markAttendance)
	r.Post("/courses/{courseID}/certifications/{studentID}", h.issueCertification)
}

func ledgerIDs(r *http.Request) (domain.CourseInstanceID, domain.ActorID, error) {
	courseID, err := domain.ParseCourseInstanceID(chi.URLParam(r, "courseID"))
	if err != nil {
		return domain.CourseInstanceID{}, domain.ActorID{}, err
	}
	studentID, err := domain.ParseActorID(chi.URLParam(r, "studentID"))
	if err != nil {
		return domain.CourseInstanceID{}, domain.ActorID{}, err
	}
	return courseID, studentID, nil
}

type registerStudentRequest struct {
	StudentID string `json:"student_id"`
}

func (h *RegistrationHandler) register(w http.ResponseWriter, r *http.Request) {
	courseID, err := domain.ParseCourseInstanceID(chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req registerStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	studentID, err := domain.ParseActorID(req.StudentID)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.GetActor(r.Context())
	reg, err := h.svc.Register(r.Context(), actor, courseID, studentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, toRegistrationResponse(reg))
}

func (h *RegistrationHandler) list(w http.ResponseWriter, r *http.Request) {
	courseID, err := domain.ParseCourseInstanceID(chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	regs, err := h.svc.List(r.Context(), courseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, toRegistrationResponses(regs))
}

func (h *RegistrationHandler) confirm(w http.ResponseWriter, r *http.Request) {
	courseID, studentID, err := ledgerIDs(r)
	if err != nil {
		writeError(w, err)
		return
	}
	actor := middleware.GetActor(r.Context())
	if err := h.svc.Confirm(r.Context(), actor, courseID, studentID); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]bool{"confirmed": true})
}

type markAttendanceRequest struct {
	Attended bool `json:"attended"`
}

func (h *RegistrationHandler) markAttendance(w http.ResponseWriter, r *http.Request) {
	courseID, studentID, err := ledgerIDs(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req markAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.GetActor(r.Context())
	rec, err := h.svc.MarkAttendance(r.Context(), actor, courseID, studentID, req.Attended)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, toAttendanceResponse(rec))
}

func (h *RegistrationHandler) issueCertification(w http.ResponseWriter, r *http.Request) {
	courseID, studentID, err := ledgerIDs(r)
	if err != nil {
		writeError(w, err)
		return
	}
	actor := middleware.GetActor(r.Context())
	if err := h.svc.IssueCertification(r.Context(), actor, courseID, studentID); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]bool{"certification_issued": true})
}
