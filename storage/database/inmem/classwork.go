package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core/classwork"
)

type classworkRepository struct {
	assignments *assignmentTable
	submissions *submissionTable
	scores      *scoreTable
}

var _ classwork.Repository = (*classworkRepository)(nil) // interface compliance check

func NewClassworkRepository(db *DB) *classworkRepository {
	return &classworkRepository{
		assignments: db.assignment,
		submissions: db.submission,
		scores:      db.score,
	}
}

func (repo *classworkRepository) CreateAssignment(_ context.Context, a classwork.Assignment) (classwork.Assignment, error) {
	repo.assignments.mutex.Lock()
	defer repo.assignments.mutex.Unlock()

	a.ID = uuid.New().String()
	repo.assignments.table[a.ID] = &a
	return a, nil
}

func (repo *classworkRepository) GetAssignmentByID(_ context.Context, id string) (classwork.Assignment, error) {
	repo.assignments.mutex.RLock()
	defer repo.assignments.mutex.RUnlock()

	if a, ok := repo.assignments.table[id]; ok {
		return *a, nil
	}
	return classwork.Assignment{}, classwork.ErrAssignmentNotFound
}

func (repo *classworkRepository) QueryAssignmentsByTeacher(_ context.Context, teacherID string) ([]classwork.Assignment, error) {
	return repo.queryAssignments(func(a classwork.Assignment) bool { return a.TeacherID == teacherID }), nil
}

func (repo *classworkRepository) QueryAllAssignments(_ context.Context) ([]classwork.Assignment, error) {
	return repo.queryAssignments(func(classwork.Assignment) bool { return true }), nil
}

func (repo *classworkRepository) queryAssignments(match func(classwork.Assignment) bool) []classwork.Assignment {
	repo.assignments.mutex.RLock()
	defer repo.assignments.mutex.RUnlock()

	asgs := make([]classwork.Assignment, 0)
	for _, a := range repo.assignments.table {
		if match(*a) {
			asgs = append(asgs, *a)
		}
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.After(asgs[j].CreatedAt) })
	return asgs
}

func (repo *classworkRepository) CreateSubmission(_ context.Context, s classwork.Submission) (classwork.Submission, error) {
	repo.submissions.mutex.Lock()
	defer repo.submissions.mutex.Unlock()

	s.ID = uuid.New().String()
	repo.submissions.table[s.ID] = &s
	return s, nil
}

func (repo *classworkRepository) GetSubmission(_ context.Context, assignmentID, studentID string) (classwork.Submission, error) {
	repo.submissions.mutex.RLock()
	defer repo.submissions.mutex.RUnlock()

	for _, s := range repo.submissions.table {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return *s, nil
		}
	}
	return classwork.Submission{}, classwork.ErrSubmissionNotFound
}

func (repo *classworkRepository) QuerySubmissionsByAssignment(_ context.Context, assignmentID string) ([]classwork.Submission, error) {
	repo.submissions.mutex.RLock()
	defer repo.submissions.mutex.RUnlock()

	subs := make([]classwork.Submission, 0)
	for _, s := range repo.submissions.table {
		if s.AssignmentID == assignmentID {
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *classworkRepository) UpsertScore(_ context.Context, s classwork.Score) (classwork.Score, error) {
	repo.scores.mutex.Lock()
	defer repo.scores.mutex.Unlock()

	for _, orig := range repo.scores.table {
		if orig.StudentID == s.StudentID && orig.Subject == s.Subject {
			orig.Score = s.Score
			orig.GradedBy = s.GradedBy
			orig.UpdatedAt = s.UpdatedAt
			return *orig, nil
		}
	}

	s.ID = uuid.New().String()
	repo.scores.table[s.ID] = &s
	return s, nil
}

func (repo *classworkRepository) QueryScoresByStudent(_ context.Context, studentID string) ([]classwork.Score, error) {
	repo.scores.mutex.RLock()
	defer repo.scores.mutex.RUnlock()

	scores := make([]classwork.Score, 0)
	for _, s := range repo.scores.table {
		if s.StudentID == studentID {
			scores = append(scores, *s)
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Subject < scores[j].Subject })
	return scores, nil
}
