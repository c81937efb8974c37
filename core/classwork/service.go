package classwork

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/darasahq/darasa/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadySubmitted   = errors.New("an answer has already been submitted for this assignment")
	ErrStudentNotFound    = errors.New("student not found")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		// QueryAssignments* return assignments newest first.
		QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]Assignment, error)
		QueryAllAssignments(ctx context.Context) ([]Assignment, error)

		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)

		// UpsertScore matches on (StudentID, Subject); insert or update in place.
		UpsertScore(ctx context.Context, s Score) (Score, error)
		QueryScoresByStudent(ctx context.Context, studentID string) ([]Score, error)
	}

	Service interface {
		CreateAssignment(ctx context.Context, teacher user.User, na NewAssignment, filePath string) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		TeacherAssignments(ctx context.Context, teacherID string) ([]Assignment, error)
		AllAssignments(ctx context.Context) ([]Assignment, error)
		SubmitAnswer(ctx context.Context, student user.User, assignmentID, filePath string) (Submission, error)
		AssignmentSubmissions(ctx context.Context, assignmentID string) ([]Submission, error)
		RecordScore(ctx context.Context, teacher user.User, ns NewScore) (Score, error)
		StudentScores(ctx context.Context, studentID string) ([]Score, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service) Service {
	return &service{repo: repo, usrSvc: usrSvc}
}

func (svc *service) CreateAssignment(ctx context.Context, teacher user.User, na NewAssignment, filePath string) (Assignment, error) {
	a := Assignment{
		TeacherID: teacher.ID,
		Subject:   na.Subject,
		Class:     na.Class,
		FilePath:  filePath,
		CreatedAt: NowFunc().UTC(),
	}
	return svc.repo.CreateAssignment(ctx, a)
}

func (svc *service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *service) TeacherAssignments(ctx context.Context, teacherID string) ([]Assignment, error) {
	return svc.repo.QueryAssignmentsByTeacher(ctx, teacherID)
}

func (svc *service) AllAssignments(ctx context.Context) ([]Assignment, error) {
	return svc.repo.QueryAllAssignments(ctx)
}

// SubmitAnswer refuses a second submission for the same assignment.
func (svc *service) SubmitAnswer(ctx context.Context, student user.User, assignmentID, filePath string) (Submission, error) {
	if _, err := svc.repo.GetAssignmentByID(ctx, assignmentID); err != nil {
		return Submission{}, err
	}
	if _, err := svc.repo.GetSubmission(ctx, assignmentID, student.ID); err == nil {
		return Submission{}, ErrAlreadySubmitted
	}

	s := Submission{
		AssignmentID: assignmentID,
		StudentID:    student.ID,
		FilePath:     filePath,
		SubmittedAt:  NowFunc().UTC(),
	}
	return svc.repo.CreateSubmission(ctx, s)
}

func (svc *service) AssignmentSubmissions(ctx context.Context, assignmentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByAssignment(ctx, assignmentID)
}

// RecordScore upserts the student's mark for the subject.
func (svc *service) RecordScore(ctx context.Context, teacher user.User, ns NewScore) (Score, error) {
	student, err := svc.usrSvc.GetByID(ctx, ns.StudentID)
	if err != nil {
		if pkgerrors.Cause(err) == user.ErrNotFound {
			return Score{}, ErrStudentNotFound
		}
		return Score{}, err
	}
	if !student.IsStudent() {
		return Score{}, ErrStudentNotFound
	}

	now := NowFunc().UTC()
	s := Score{
		StudentID: student.ID,
		Subject:   ns.Subject,
		Score:     *ns.Score,
		GradedBy:  teacher.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.UpsertScore(ctx, s)
}

func (svc *service) StudentScores(ctx context.Context, studentID string) ([]Score, error) {
	return svc.repo.QueryScoresByStudent(ctx, studentID)
}
