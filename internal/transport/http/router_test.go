package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courseflow/internal/availability"
	"courseflow/internal/course"
	"courseflow/internal/identity"
	"courseflow/internal/registration"
	regadapters "courseflow/internal/registration/adapters"
	"courseflow/internal/settlement"
	setadapters "courseflow/internal/settlement/adapters"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
)

// stubValidator maps bearer tokens to actors so handler tests do not need
// real JWTs.
type stubValidator struct {
	actors map[string]identity.Actor
}

func (v *stubValidator) ValidateToken(token string) (identity.Actor, error) {
	actor, ok := v.actors[token]
	if !ok {
		return identity.Actor{}, dErrors.New(dErrors.CodeNotAuthenticated, "unknown token")
	}
	return actor, nil
}

type apiFixture struct {
	router    http.Handler
	validator *stubValidator

	orgID        domain.OrganizationID
	instructorID domain.ActorID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	courseStore := course.NewInMemoryStore()
	calendar := availability.NewService(availability.NewInMemoryStore())
	payments := settlement.NewService(settlement.NewInMemoryStore(), setadapters.NewCourseDirectory(courseStore))
	courses := course.NewService(courseStore, calendar, payments)
	registrations := registration.NewService(registration.NewInMemoryStore(), regadapters.NewCourseDirectory(courseStore))

	f := &apiFixture{
		validator:    &stubValidator{actors: make(map[string]identity.Actor)},
		orgID:        domain.NewOrganizationID(),
		instructorID: domain.NewActorID(),
	}
	f.validator.actors["admin-token"] = identity.Actor{
		ID:             domain.NewActorID(),
		Role:           identity.RoleOrgAdmin,
		OrganizationID: f.orgID,
	}
	f.validator.actors["instructor-token"] = identity.Actor{
		ID:             f.instructorID,
		Role:           identity.RoleInstructor,
		OrganizationID: f.orgID,
	}
	f.validator.actors["accounting-token"] = identity.Actor{
		ID:             domain.NewActorID(),
		Role:           identity.RoleAccounting,
		OrganizationID: f.orgID,
	}
	f.validator.actors["student-token"] = identity.Actor{
		ID:             domain.NewActorID(),
		Role:           identity.RoleStudent,
		OrganizationID: f.orgID,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.router = NewRouter(Services{
		Availability:  calendar,
		Courses:       courses,
		Payments:      payments,
		Registrations: registrations,
	}, f.validator, logger)
	return f
}

func (f *apiFixture) do(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeOK(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var envelope struct {
		OK json.RawMessage `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.OK, "expected an ok envelope, got %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.OK, dst))
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Kind
}

func (f *apiFixture) openSlot(t *testing.T, date string) {
	t.Helper()

	rec := f.do(t, "instructor-token", http.MethodPost, "/availability", map[string]any{
		"instructor_id": f.instructorID.String(),
		"date":          date,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (f *apiFixture) createCourse(t *testing.T, date string) courseResponse {
	t.Helper()

	rec := f.do(t, "admin-token", http.MethodPost, "/courses", map[string]any{
		"organization_id": f.orgID.String(),
		"org_code":        "ACM",
		"course_type_id":  domain.NewCourseTypeID().String(),
		"type_code":       "FAK",
		"instructor_id":   f.instructorID.String(),
		"requested_date":  date,
		"location":        "Main hall",
		"max_students":    12,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created courseResponse
	decodeOK(t, rec, &created)
	return created
}

func (f *apiFixture) transitionCourse(t *testing.T, token, courseID, to string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, token, http.MethodPost, "/courses/"+courseID+"/transition", map[string]string{"to": to})
}

func TestRouterAuthentication(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("missing token is rejected", func(t *testing.T) {
		rec := f.do(t, "", http.MethodGet, "/courses", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "not_authenticated", errorKind(t, rec))
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		rec := f.do(t, "bogus", http.MethodGet, "/courses", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("health and metrics are public", func(t *testing.T) {
		rec := f.do(t, "", http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, "", http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAvailabilityEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("open and list", func(t *testing.T) {
		f.openSlot(t, "2025-06-01")
		f.openSlot(t, "2025-06-02")

		rec := f.do(t, "admin-token", http.MethodGet, "/availability/"+f.instructorID.String()+"?from=2025-06-01", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entries []entryResponse
		decodeOK(t, rec, &entries)
		require.Len(t, entries, 2)
		assert.Equal(t, "2025-06-01", entries[0].Date)
		assert.Equal(t, "available", entries[0].Status)
	})

	t.Run("duplicate slot conflicts", func(t *testing.T) {
		rec := f.do(t, "instructor-token", http.MethodPost, "/availability", map[string]any{
			"instructor_id": f.instructorID.String(),
			"date":          "2025-06-01",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "slot_unavailable", errorKind(t, rec))
	})

	t.Run("missing from parameter", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodGet, "/availability/"+f.instructorID.String(), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_input", errorKind(t, rec))
	})

	t.Run("malformed date", func(t *testing.T) {
		rec := f.do(t, "instructor-token", http.MethodPost, "/availability", map[string]any{
			"instructor_id": f.instructorID.String(),
			"date":          "junk",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCourseEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.openSlot(t, "2025-06-01")

	created := f.createCourse(t, "2025-06-01")
	assert.Equal(t, "pending", created.Status)
	assert.True(t, strings.HasPrefix(created.CourseNumber, "20250601-ACM-FAK"), created.CourseNumber)

	t.Run("get by id", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodGet, "/courses/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got courseResponse
		decodeOK(t, rec, &got)
		assert.Equal(t, created.CourseNumber, got.CourseNumber)
	})

	t.Run("get unknown id", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodGet, "/courses/"+domain.NewCourseInstanceID().String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", errorKind(t, rec))
	})

	t.Run("list with status filter", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodGet, "/courses?status=pending", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []courseResponse
		decodeOK(t, rec, &got)
		require.Len(t, got, 1)
	})

	t.Run("list rejects bad status", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodGet, "/courses?status=nonsense", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("schedule then complete", func(t *testing.T) {
		rec := f.transitionCourse(t, "admin-token", created.ID, "scheduled")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.transitionCourse(t, "instructor-token", created.ID, "completed")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got courseResponse
		decodeOK(t, rec, &got)
		assert.Equal(t, "completed", got.Status)
	})

	t.Run("instructor cannot bill", func(t *testing.T) {
		rec := f.transitionCourse(t, "instructor-token", created.ID, "billed")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "wrong_role", errorKind(t, rec))
	})

	t.Run("invalid target status", func(t *testing.T) {
		rec := f.transitionCourse(t, "admin-token", created.ID, "archived")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create without open slot", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodPost, "/courses", map[string]any{
			"organization_id": f.orgID.String(),
			"org_code":        "ACM",
			"course_type_id":  domain.NewCourseTypeID().String(),
			"type_code":       "FAK",
			"instructor_id":   f.instructorID.String(),
			"requested_date":  "2025-07-15",
			"location":        "Main hall",
			"max_students":    12,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "slot_unavailable", errorKind(t, rec))
	})
}

func TestSettlementEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.openSlot(t, "2025-06-01")
	created := f.createCourse(t, "2025-06-01")

	t.Run("payment before delivery is rejected", func(t *testing.T) {
		rec := f.do(t, "accounting-token", http.MethodPost, "/payments", map[string]any{
			"course_instance_id": created.ID,
			"amount_cents":       500_00,
			"method":             "credit_card",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "course_not_completed", errorKind(t, rec))
	})

	require.Equal(t, http.StatusOK, f.transitionCourse(t, "admin-token", created.ID, "scheduled").Code)
	require.Equal(t, http.StatusOK, f.transitionCourse(t, "instructor-token", created.ID, "completed").Code)

	var payment paymentResponse
	t.Run("record payment", func(t *testing.T) {
		rec := f.do(t, "accounting-token", http.MethodPost, "/payments", map[string]any{
			"course_instance_id": created.ID,
			"amount_cents":       500_00,
			"method":             "credit_card",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		decodeOK(t, rec, &payment)
		assert.Equal(t, "pending", payment.Status)
		assert.Equal(t, "500.00", payment.Amount)
	})

	t.Run("second active payment conflicts", func(t *testing.T) {
		rec := f.do(t, "accounting-token", http.MethodPost, "/payments", map[string]any{
			"course_instance_id": created.ID,
			"amount_cents":       500_00,
			"method":             "bank_transfer",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "duplicate_payment", errorKind(t, rec))
	})

	t.Run("billing blocked until paid", func(t *testing.T) {
		rec := f.transitionCourse(t, "admin-token", created.ID, "billed")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "invalid_transition", errorKind(t, rec))
	})

	t.Run("mark paid then bill", func(t *testing.T) {
		rec := f.do(t, "accounting-token", http.MethodPost, "/payments/"+payment.ID+"/transition", map[string]string{"to": "paid"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.transitionCourse(t, "admin-token", created.ID, "billed")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("paid to pending is invalid", func(t *testing.T) {
		rec := f.do(t, "accounting-token", http.MethodPost, "/payments/"+payment.ID+"/transition", map[string]string{"to": "pending"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("get payment", func(t *testing.T) {
		rec := f.do(t, "accounting-token", http.MethodGet, "/payments/"+payment.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got paymentResponse
		decodeOK(t, rec, &got)
		assert.Equal(t, "paid", got.Status)
	})

	// Payments record at the server clock, so the summary range brackets
	// the current day rather than naming fixed dates.
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -1).Format("2006-01-02")
	to := now.AddDate(0, 0, 1).Format("2006-01-02")

	t.Run("summary", func(t *testing.T) {
		path := fmt.Sprintf("/organizations/%s/settlement-summary?from=%s&to=%s", f.orgID, from, to)
		rec := f.do(t, "accounting-token", http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got summaryResponse
		decodeOK(t, rec, &got)
		assert.Equal(t, int64(500_00), got.TotalsByStatus["paid"])
		assert.Equal(t, 1, got.CountsByStatus["paid"])
	})

	t.Run("summary for another organization is forbidden", func(t *testing.T) {
		path := fmt.Sprintf("/organizations/%s/settlement-summary?from=%s&to=%s", domain.NewOrganizationID(), from, to)
		rec := f.do(t, "accounting-token", http.MethodGet, path, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "wrong_organization", errorKind(t, rec))
	})

	t.Run("summary requires range", func(t *testing.T) {
		rec := f.do(t, "accounting-token", http.MethodGet, "/organizations/"+f.orgID.String()+"/settlement-summary", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRegistrationEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.openSlot(t, "2025-06-01")
	created := f.createCourse(t, "2025-06-01")
	studentID := domain.NewActorID()

	registerPath := "/courses/" + created.ID + "/registrations"

	t.Run("register student", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodPost, registerPath, map[string]string{"student_id": studentID.String()})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got registrationResponse
		decodeOK(t, rec, &got)
		assert.False(t, got.Confirmed)
	})

	t.Run("student cannot self-register", func(t *testing.T) {
		rec := f.do(t, "student-token", http.MethodPost, registerPath, map[string]string{"student_id": studentID.String()})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodPost, registerPath, map[string]string{"student_id": studentID.String()})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "duplicate_registration", errorKind(t, rec))
	})

	t.Run("confirm and list", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodPost, registerPath+"/"+studentID.String()+"/confirm", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(t, "admin-token", http.MethodGet, registerPath, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []registrationResponse
		decodeOK(t, rec, &got)
		require.Len(t, got, 1)
		assert.True(t, got[0].Confirmed)
	})

	t.Run("attendance requires delivery", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodPut, "/courses/"+created.ID+"/attendance/"+studentID.String(), map[string]bool{"attended": true})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "course_not_completed", errorKind(t, rec))
	})

	require.Equal(t, http.StatusOK, f.transitionCourse(t, "admin-token", created.ID, "scheduled").Code)
	require.Equal(t, http.StatusOK, f.transitionCourse(t, "instructor-token", created.ID, "completed").Code)

	t.Run("mark attendance and certify", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodPut, "/courses/"+created.ID+"/attendance/"+studentID.String(), map[string]bool{"attended": true})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got attendanceResponse
		decodeOK(t, rec, &got)
		assert.True(t, got.Attended)
		assert.False(t, got.CertificationIssued)

		rec = f.do(t, "admin-token", http.MethodPost, "/courses/"+created.ID+"/certifications/"+studentID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("second certification is rejected", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodPost, "/courses/"+created.ID+"/certifications/"+studentID.String(), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "invalid_transition", errorKind(t, rec))
	})

	t.Run("certifying an unregistered student", func(t *testing.T) {
		rec := f.do(t, "admin-token", http.MethodPost, "/courses/"+created.ID+"/certifications/"+domain.NewActorID().String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
