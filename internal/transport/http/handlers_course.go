package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"courseflow/internal/course"
	"courseflow/internal/platform/middleware"
	"courseflow/pkg/domain"
)

// CourseHandler exposes course instance creation, lookup and lifecycle
// transitions.
type CourseHandler struct {
	svc *course.Service
}

func NewCourseHandler(svc *course.Service) *CourseHandler {
	return &CourseHandler{svc: svc}
}

func (h *CourseHandler) Register(r chi.Router) {
	r.Post("/courses", h.create)
	r.Get("/courses", h.list)
	r.Get("/courses/{courseID}", h.get)
	r.Post("/courses/{courseID}/transition", h.transition)
}

type createCourseRequest struct {
	OrganizationID string `json:"organization_id"`
	OrgCode        string `json:"org_code"`
	CourseTypeID   string `json:"course_type_id"`
	TypeCode       string `json:"type_code"`
	InstructorID   string `json:"instructor_id"`
	RequestedDate  string `json:"requested_date"`
	Location       string `json:"location"`
	MaxStudents    int    `json:"max_students"`
	Notes          string `json:"notes"`
}

func (r createCourseRequest) toServiceRequest() (course.CreateRequest, error) {
	orgID, err := domain.ParseOrganizationID(r.OrganizationID)
	if err != nil {
		return course.CreateRequest{}, err
	}
	orgCode, err := domain.ParseShortCode(r.OrgCode)
	if err != nil {
		return course.CreateRequest{}, err
	}
	typeID, err := domain.ParseCourseTypeID(r.CourseTypeID)
	if err != nil {
		return course.CreateRequest{}, err
	}
	typeCode, err := domain.ParseShortCode(r.TypeCode)
	if err != nil {
		return course.CreateRequest{}, err
	}
	instructorID, err := domain.ParseActorID(r.InstructorID)
	if err != nil {
		return course.CreateRequest{}, err
	}
	date, err := domain.ParseCalendarDate(r.RequestedDate)
	if err != nil {
		return course.CreateRequest{}, err
	}
	return course.CreateRequest{
		OrganizationID: orgID,
		OrgCode:        orgCode,
		CourseTypeID:   typeID,
		TypeCode:       typeCode,
		InstructorID:   instructorID,
		RequestedDate:  date,
		Location:       r.Location,
		MaxStudents:    r.MaxStudents,
		Notes:          r.Notes,
	}, nil
}

func (h *CourseHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	serviceReq, err := req.toServiceRequest()
	if err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.GetActor(r.Context())
	instance, err := h.svc.Create(r.Context(), actor, serviceReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, toCourseResponse(instance))
}

func (h *CourseHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCourseInstanceID(chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	instance, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, toCourseResponse(instance))
}

func (h *CourseHandler) list(w http.ResponseWriter, r *http.Request) {
	var filter course.Filter
	query := r.URL.Query()
	if raw := query.Get("organization_id"); raw != "" {
		orgID, err := domain.ParseOrganizationID(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.OrganizationID = orgID
	}
	if raw := query.Get("instructor_id"); raw != "" {
		instructorID, err := domain.ParseActorID(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.InstructorID = instructorID
	}
	if raw := query.Get("status"); raw != "" {
		status, err := course.ParseStatus(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Status = status
	}

	instances, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, toCourseResponses(instances))
}

type transitionRequest struct {
	To string `json:"to"`
}

func (h *CourseHandler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCourseInstanceID(chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	to, err := course.ParseStatus(req.To)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.GetActor(r.Context())
	instance, err := h.svc.Transition(r.Context(), actor, id, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, toCourseResponse(instance))
}
