// Package settlement is the payment ledger tied to course completion: one
// active payment record per completed course instance, its own status
// machine, and per-organization financial aggregation.
package settlement

import (
	"time"

	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
)

// Method is how the organization pays. Only the label is modeled; gateway
// integration is out of scope.
type Method string

const (
	MethodCreditCard   Method = "credit_card"
	MethodBankTransfer Method = "bank_transfer"
	MethodCheck        Method = "check"
	MethodCash         Method = "cash"
	MethodOther        Method = "other"
)

var validMethods = map[Method]bool{
	MethodCreditCard:   true,
	MethodBankTransfer: true,
	MethodCheck:        true,
	MethodCash:         true,
	MethodOther:        true,
}

// ParseMethod constructs a Method from external input.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !validMethods[m] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown payment method %q", s)
	}
	return m, nil
}

func (m Method) String() string { return string(m) }

// Status of a payment record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusPaid:      true,
	StatusOverdue:   true,
	StatusCancelled: true,
	StatusRefunded:  true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown payment status %q", s)
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

// allowedTransitions is the payment status machine. Pending fans out;
// Paid can only be refunded; Overdue, Cancelled, and Refunded are terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusOverdue, StatusCancelled},
	StatusPaid:      {StatusRefunded},
	StatusOverdue:   {},
	StatusCancelled: {},
	StatusRefunded:  {},
}

// CanTransitionTo reports whether the edge from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive reports whether the record still counts against the one-payment-
// per-course rule. Cancelled and Refunded records do not.
func (s Status) IsActive() bool {
	return s != StatusCancelled && s != StatusRefunded
}

// Payment is one settlement record. Amounts are minor units (cents); no
// floats in money paths.
type Payment struct {
	ID               domain.PaymentID
	CourseInstanceID domain.CourseInstanceID
	OrganizationID   domain.OrganizationID
	AmountCents      int64
	Method           Method
	Status           Status
	RecordedBy       domain.ActorID
	RecordedAt       time.Time
	UpdatedAt        time.Time
}

// Summary aggregates an organization's payments by status over a date range.
type Summary struct {
	OrganizationID domain.OrganizationID `json:"organization_id"`
	From           domain.CalendarDate   `json:"from"`
	To             domain.CalendarDate   `json:"to"`
	TotalsByStatus map[Status]int64      `json:"totals_by_status"`
	CountsByStatus map[Status]int        `json:"counts_by_status"`
}
