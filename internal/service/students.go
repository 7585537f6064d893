package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/student-records/internal/apperr"
	"github.com/iliyamo/student-records/internal/model"
	"github.com/iliyamo/student-records/internal/repository"
)

const (
	MsgStudentNotFound = "Student not found"
	MsgNISNExists      = "NISN already exists"
)

// DateLayout is the wire format of Student.DOB in requests and exports.
const DateLayout = "2006-01-02"

var exportHeader = []string{"id", "nisn", "name", "dob", "guardianContact", "createdAt", "updatedAt"}

// StudentPatch carries the changeable student fields; nil leaves a field
// as is. GuardianContact set to an empty string clears it.
type StudentPatch struct {
	NISN            *string
	Name            *string
	DOB             *time.Time
	GuardianContact *string
	IsActive        *bool
}

// StudentService implements the student records operations.
type StudentService struct {
	students StudentStore
	log      logrus.FieldLogger
	audit    auditor
}

// NewStudentService returns a StudentService. events may be nil.
func NewStudentService(students StudentStore, events EventPublisher, log logrus.FieldLogger) *StudentService {
	if events == nil {
		events = NopPublisher
	}
	return &StudentService{students: students, log: log, audit: auditor{events: events, log: log}}
}

// Create inserts st. A taken NISN is Conflict.
func (s *StudentService) Create(ctx context.Context, actorID int64, st *model.Student) (*model.Student, error) {
	if err := s.students.Create(ctx, st); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict(MsgNISNExists)
		}
		return nil, s.fail("create", "Failed to create student", err)
	}
	s.audit.record(ctx, "student", "create", actorID, nil, st)
	return st, nil
}

// List returns one page of students.
func (s *StudentService) List(ctx context.Context, p repository.ListParams) (repository.Page[model.Student], error) {
	page, err := s.students.List(ctx, p)
	if err != nil {
		return page, s.fail("list", "Failed to fetch students", err)
	}
	return page, nil
}

// Get returns the student or NotFound.
func (s *StudentService) Get(ctx context.Context, id int64) (*model.Student, error) {
	st, err := s.students.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(MsgStudentNotFound)
	}
	if err != nil {
		return nil, s.fail("get", "Failed to fetch student", err)
	}
	return st, nil
}

// Update applies the non-nil fields of in and returns the stored row.
func (s *StudentService) Update(ctx context.Context, actorID, id int64, in StudentPatch) (*model.Student, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := *before
	if in.NISN != nil {
		st.NISN = *in.NISN
	}
	if in.Name != nil {
		st.Name = *in.Name
	}
	if in.DOB != nil {
		st.DOB = *in.DOB
	}
	if in.GuardianContact != nil {
		if *in.GuardianContact == "" {
			st.GuardianContact = nil
		} else {
			st.GuardianContact = in.GuardianContact
		}
	}
	if in.IsActive != nil {
		st.IsActive = *in.IsActive
	}

	switch err := s.students.Update(ctx, &st); {
	case errors.Is(err, repository.ErrConflict):
		return nil, apperr.Conflict(MsgNISNExists)
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound(MsgStudentNotFound)
	case err != nil:
		return nil, s.fail("update", "Failed to update student", err)
	}
	s.audit.record(ctx, "student", "update", actorID, before, &st)
	return &st, nil
}

// Delete removes the student and returns the row as it was.
func (s *StudentService) Delete(ctx context.Context, actorID, id int64) (*model.Student, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch err := s.students.Delete(ctx, id); {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound(MsgStudentNotFound)
	case err != nil:
		return nil, s.fail("delete", "Failed to delete student", err)
	}
	s.audit.record(ctx, "student", "delete", actorID, st, nil)
	return st, nil
}

// Export writes every student as CSV, header first.
func (s *StudentService) Export(ctx context.Context, w io.Writer) error {
	rows, err := s.students.All(ctx)
	if err != nil {
		return s.fail("export", "Failed to export students", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, st := range rows {
		guardian := ""
		if st.GuardianContact != nil {
			guardian = *st.GuardianContact
		}
		rec := []string{
			strconv.FormatInt(st.ID, 10),
			st.NISN,
			st.Name,
			st.DOB.Format(DateLayout),
			guardian,
			st.CreatedAt.UTC().Format(time.RFC3339),
			st.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *StudentService) fail(op, fallback string, err error) error {
	wrapped := apperr.Wrap(err, fallback)
	if apperr.IsUnexpected(wrapped) {
		s.log.WithError(err).WithField("operation", "student."+op).Error("student operation failed")
	}
	return wrapped
}
