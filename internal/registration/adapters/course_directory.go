// Package adapters bridges the registration service to its neighbors
// without creating package cycles.
package adapters

import (
	"context"
	"errors"

	"courseflow/internal/course"
	"courseflow/internal/registration"
	"courseflow/pkg/domain"
	dErrors "courseflow/pkg/domain-errors"
	"courseflow/pkg/platform/sentinel"
)

// CourseDirectory answers registration's course lookups straight from the
// course store. The registration service authorizes against the returned
// organization itself.
type CourseDirectory struct {
	store course.Store
}

func NewCourseDirectory(store course.Store) *CourseDirectory {
	return &CourseDirectory{store: store}
}

func (d *CourseDirectory) Lookup(ctx context.Context, id domain.CourseInstanceID) (registration.CourseRef, error) {
	instance, err := d.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return registration.CourseRef{}, dErrors.Newf(dErrors.CodeNotFound, "course instance %s not found", id)
		}
		return registration.CourseRef{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve course instance")
	}
	return registration.CourseRef{
		OrganizationID: instance.OrganizationID,
		Status:         string(instance.Status),
		MaxStudents:    instance.MaxStudents,
	}, nil
}
