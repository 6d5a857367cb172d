package httptransport

import (
	"time"

	"courseflow/internal/availability"
	"courseflow/internal/course"
	"courseflow/internal/registration"
	"courseflow/internal/settlement"
)

type entryResponse struct {
	InstructorID string `json:"instructor_id"`
	Date         string `json:"date"`
	Status       string `json:"status"`
}

func toEntryResponse(entry availability.Entry) entryResponse {
	return entryResponse{
		InstructorID: entry.InstructorID.String(),
		Date:         entry.Date.String(),
		Status:       string(entry.Status),
	}
}

func toEntryResponses(entries []availability.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}
	return out
}

type courseResponse struct {
	ID             string    `json:"id"`
	CourseNumber   string    `json:"course_number"`
	RequestedDate  string    `json:"requested_date"`
	OrganizationID string    `json:"organization_id"`
	CourseTypeID   string    `json:"course_type_id"`
	InstructorID   string    `json:"instructor_id"`
	Location       string    `json:"location"`
	MaxStudents    int       `json:"max_students"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toCourseResponse(instance *course.Instance) courseResponse {
	return courseResponse{
		ID:             instance.ID.String(),
		CourseNumber:   instance.CourseNumber,
		RequestedDate:  instance.RequestedDate.String(),
		OrganizationID: instance.OrganizationID.String(),
		CourseTypeID:   instance.CourseTypeID.String(),
		InstructorID:   instance.InstructorID.String(),
		Location:       instance.Location,
		MaxStudents:    instance.MaxStudents,
		Status:         string(instance.Status),
		Notes:          instance.Notes,
		CreatedAt:      instance.CreatedAt,
		UpdatedAt:      instance.UpdatedAt,
	}
}

func toCourseResponses(instances []*course.Instance) []courseResponse {
	out := make([]courseResponse, 0, len(instances))
	for _, instance := range instances {
		out = append(out, toCourseResponse(instance))
	}
	return out
}

type paymentResponse struct {
	ID               string    `json:"id"`
	CourseInstanceID string    `json:"course_instance_id"`
	OrganizationID   string    `json:"organization_id"`
	AmountCents      int64     `json:"amount_cents"`
	Amount           string    `json:"amount"`
	Method           string    `json:"method"`
	Status           string    `json:"status"`
	RecordedBy       string    `json:"recorded_by"`
	RecordedAt       time.Time `json:"recorded_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toPaymentResponse(payment *settlement.Payment) paymentResponse {
	return paymentResponse{
		ID:               payment.ID.String(),
		CourseInstanceID: payment.CourseInstanceID.String(),
		OrganizationID:   payment.OrganizationID.String(),
		AmountCents:      payment.AmountCents,
		Amount:           settlement.FormatAmount(payment.AmountCents),
		Method:           string(payment.Method),
		Status:           string(payment.Status),
		RecordedBy:       payment.RecordedBy.String(),
		RecordedAt:       payment.RecordedAt,
		UpdatedAt:        payment.UpdatedAt,
	}
}

type registrationResponse struct {
	CourseInstanceID string `json:"course_instance_id"`
	StudentID        string `json:"student_id"`
	RegistrationDate string `json:"registration_date"`
	Confirmed        bool   `json:"confirmed"`
}

func toRegistrationResponse(reg registration.Registration) registrationResponse {
	return registrationResponse{
		CourseInstanceID: reg.CourseInstanceID.String(),
		StudentID:        reg.StudentID.String(),
		RegistrationDate: reg.RegistrationDate.String(),
		Confirmed:        reg.Confirmed,
	}
}

func toRegistrationResponses(regs []registration.Registration) []registrationResponse {
	out := make([]registrationResponse, 0, len(regs))
	for _, reg := range regs {
		out = append(out, toRegistrationResponse(reg))
	}
	return out
}

type attendanceResponse struct {
	CourseInstanceID    string `json:"course_instance_id"`
	StudentID           string `json:"student_id"`
	Attended            bool   `json:"attended"`
	CertificationIssued bool   `json:"certification_issued"`
}

func toAttendanceResponse(rec registration.Attendance) attendanceResponse {
	return attendanceResponse{
		CourseInstanceID:    rec.CourseInstanceID.String(),
		StudentID:           rec.StudentID.String(),
		Attended:            rec.Attended,
		CertificationIssued: rec.CertificationIssued,
	}
}

type summaryResponse struct {
	OrganizationID string           `json:"organization_id"`
	From           string           `json:"from"`
	To             string           `json:"to"`
	TotalsByStatus map[string]int64 `json:"totals_by_status"`
	CountsByStatus map[string]int   `json:"counts_by_status"`
}

func toSummaryResponse(summary settlement.Summary) summaryResponse {
	out := summaryResponse{
		OrganizationID: summary.OrganizationID.String(),
		From:           summary.From.String(),
		To:             summary.To.String(),
		TotalsByStatus: make(map[string]int64, len(summary.TotalsByStatus)),
		CountsByStatus: make(map[string]int, len(summary.CountsByStatus)),
	}
	for status, total := range summary.TotalsByStatus {
		out.TotalsByStatus[string(status)] = total
	}
	for status, count := range summary.CountsByStatus {
		out.CountsByStatus[string(status)] = count
	}
	return out
}
