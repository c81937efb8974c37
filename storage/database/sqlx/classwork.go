package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/classwork"
)

const (
	assignmentColumns = `id, teacher_id, subject, class, file_path, created_at`
	submissionColumns = `id, assignment_id, student_id, file_path, submitted_at`
	scoreColumns      = `id, student_id, subject, score, graded_by, created_at, updated_at`
)

type classworkRepository struct {
	db *sqlx.DB
}

var _ classwork.Repository = (*classworkRepository)(nil) // interface compliance check

func NewClassworkRepository(db *sqlx.DB) *classworkRepository {
	return &classworkRepository{db: db}
}

func (repo classworkRepository) CreateAssignment(ctx context.Context, a classwork.Assignment) (classwork.Assignment, error) {
	a.ID = uuid.New().String()
	q := `INSERT INTO assignment (` + assignmentColumns + `)
VALUES (:id, :teacher_id, :subject, :class, :file_path, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, a); err != nil {
		return classwork.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo classworkRepository) GetAssignmentByID(ctx context.Context, id string) (classwork.Assignment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return classwork.Assignment{}, classwork.ErrAssignmentNotFound
	}
	var a classwork.Assignment
	q := `SELECT ` + assignmentColumns + ` FROM assignment WHERE id = $1`
	if err := repo.db.GetContext(ctx, &a, q, id); err != nil {
		if err == sql.ErrNoRows {
			return classwork.Assignment{}, classwork.ErrAssignmentNotFound
		}
		return classwork.Assignment{}, errors.Wrap(err, "finding assignment")
	}
	return a, nil
}

func (repo classworkRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]classwork.Assignment, error) {
	asgs := make([]classwork.Assignment, 0)
	q := `SELECT ` + assignmentColumns + ` FROM assignment WHERE teacher_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &asgs, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return asgs, nil
}

func (repo classworkRepository) QueryAllAssignments(ctx context.Context) ([]classwork.Assignment, error) {
	asgs := make([]classwork.Assignment, 0)
	q := `SELECT ` + assignmentColumns + ` FROM assignment ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &asgs, q); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return asgs, nil
}

func (repo classworkRepository) CreateSubmission(ctx context.Context, s classwork.Submission) (classwork.Submission, error) {
	s.ID = uuid.New().String()
	q := `INSERT INTO submission (` + submissionColumns + `)
VALUES (:id, :assignment_id, :student_id, :file_path, :submitted_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, s); err != nil {
		return classwork.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo classworkRepository) GetSubmission(ctx context.Context, assignmentID, studentID string) (classwork.Submission, error) {
	var s classwork.Submission
	q := `SELECT ` + submissionColumns + ` FROM submission WHERE assignment_id = $1 AND student_id = $2`
	if err := repo.db.GetContext(ctx, &s, q, assignmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return classwork.Submission{}, classwork.ErrSubmissionNotFound
		}
		return classwork.Submission{}, errors.Wrap(err, "finding submission")
	}
	return s, nil
}

func (repo classworkRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]classwork.Submission, error) {
	subs := make([]classwork.Submission, 0)
	q := `SELECT ` + submissionColumns + ` FROM submission WHERE assignment_id = $1 ORDER BY submitted_at DESC`
	if err := repo.db.SelectContext(ctx, &subs, q, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}

func (repo classworkRepository) UpsertScore(ctx context.Context, s classwork.Score) (classwork.Score, error) {
	s.ID = uuid.New().String()
	q := `INSERT INTO score (` + scoreColumns + `)
VALUES (:id, :student_id, :subject, :score, :graded_by, :created_at, :updated_at)
ON CONFLICT (student_id, subject)
DO UPDATE SET score = EXCLUDED.score, graded_by = EXCLUDED.graded_by, updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.NamedExecContext(ctx, q, s); err != nil {
		return classwork.Score{}, errors.Wrap(err, "upserting score")
	}

	// the pre-existing row id wins on conflict
	var saved classwork.Score
	getQ := `SELECT ` + scoreColumns + ` FROM score WHERE student_id = $1 AND subject = $2`
	if err := repo.db.GetContext(ctx, &saved, getQ, s.StudentID, s.Subject); err != nil {
		return classwork.Score{}, errors.Wrap(err, "fetching upserted score")
	}
	return saved, nil
}

func (repo classworkRepository) QueryScoresByStudent(ctx context.Context, studentID string) ([]classwork.Score, error) {
	scores := make([]classwork.Score, 0)
	q := `SELECT ` + scoreColumns + ` FROM score WHERE student_id = $1 ORDER BY subject`
	if err := repo.db.SelectContext(ctx, &scores, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	return scores, nil
}
