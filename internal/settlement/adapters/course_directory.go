// Package adapters bridges the settlement service to its neighbors without
// creating package cycles.
package adapters

import (
	"context"
	"errors"

	"courseflow/internal/course"
	"courseflow/internal/settlement"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
	"courseflow/pkg/platform/sentinel"
)

// CourseDirectory answers settlement's course lookups straight from the
// course store, bypassing the course service's authorization layer. The
// settlement service does its own authorization against the returned
// organization.
type CourseDirectory struct {
	store course.Store
}

func NewCourseDirectory(store course.Store) *CourseDirectory {
	return &CourseDirectory{store: store}
}

func (d *CourseDirectory) Lookup(ctx context.Context, id domain.CourseInstanceID) (settlement.CourseRef, error) {
	instance, err := d.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return settlement.CourseRef{}, dErrors.Newf(dErrors.CodeNotFound, "course instance %s not found", id)
		}
		return settlement.CourseRef{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve course instance")
	}
	return settlement.CourseRef{
		OrganizationID: instance.OrganizationID,
		Status:         string(instance.Status),
	}, nil
}
