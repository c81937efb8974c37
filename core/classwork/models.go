package classwork

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Assignment is a piece of classwork uploaded by a teacher for a class.
type Assignment struct {
	ID        string    `json:"id" db:"id"`
	TeacherID string    `json:"teacher_id" db:"teacher_id"`
	Subject   string    `json:"subject" db:"subject"`
	Class     string    `json:"class" db:"class"`
	FilePath  string    `json:"file_path" db:"file_path"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// Submission is a student's answer to an assignment; one per (assignment, student).
type Submission struct {
	ID           string    `json:"id" db:"id"`
	AssignmentID string    `json:"assignment_id" db:"assignment_id"`
	StudentID    string    `json:"student_id" db:"student_id"`
	FilePath     string    `json:"file_path" db:"file_path"`
	SubmittedAt  time.Time `json:"submitted_at" db:"submitted_at"` // UTC
}

// Score is a student's mark in a subject, recorded by a teacher.
// One row per (student, subject); re-recording updates in place.
type Score struct {
	ID        string    `json:"id" db:"id"`
	StudentID string    `json:"student_id" db:"student_id"`
	Subject   string    `json:"subject" db:"subject"`
	Score     int       `json:"score" db:"score"`
	GradedBy  string    `json:"graded_by" db:"graded_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// NewAssignment carries the multipart form fields; the file itself is saved
// by the handler and its path passed along.
type NewAssignment struct {
	Subject string `form:"subject" validate:"required"`
	Class   string `form:"class" validate:"required"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Subject = core.CleanString(na.Subject)
	na.Class = core.CleanString(na.Class)
	return validate.Struct(na)
}

// NewScore records or updates a student's mark in a subject.
type NewScore struct {
	StudentID string `json:"student_id" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
	Score     *int   `json:"score" validate:"required,gte=0,lte=100"`
}

func (ns *NewScore) Validate(validate *validator.Validate) error {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.Subject = core.CleanString(ns.Subject)
	return validate.Struct(ns)
}
