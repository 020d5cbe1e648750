package inmemdb

import (
	"context"
	"sort"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateProfile(ctx context.Context, p enrollment.Profile, exec ...core.DBExecutor) (enrollment.Profile, error) {
	repo.db.profile.Lock()
	defer repo.db.profile.Unlock()
	repo.db.profile.table[p.ID] = &p
	return p, nil
}

func (repo *enrollmentRepository) GetProfileByUserID(ctx context.Context, userID string) (enrollment.Profile, error) {
	repo.db.profile.RLock()
	defer repo.db.profile.RUnlock()

	for _, p := range repo.db.profile.table {
		if p.UserID == userID {
			return *p, nil
		}
	}
	return enrollment.Profile{}, enrollment.ErrProfileNotFound
}

func (repo *enrollmentRepository) QueryAllProfiles(ctx context.Context) ([]enrollment.Profile, error) {
	repo.db.profile.RLock()
	defer repo.db.profile.RUnlock()

	profiles := make([]enrollment.Profile, 0, len(repo.db.profile.table))
	for _, p := range repo.db.profile.table {
		profiles = append(profiles, *p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].CreatedAt.After(profiles[j].CreatedAt) })
	return profiles, nil
}

func (repo *enrollmentRepository) UpdateProfile(ctx context.Context, p enrollment.Profile) (enrollment.Profile, error) {
	repo.db.profile.Lock()
	defer repo.db.profile.Unlock()

	if _, ok := repo.db.profile.table[p.ID]; !ok {
		return enrollment.Profile{}, enrollment.ErrProfileNotFound
	}
	repo.db.profile.table[p.ID] = &p
	return p, nil
}

func (repo *enrollmentRepository) CreateRoleAssignment(ctx context.Context, ra enrollment.RoleAssignment, exec ...core.DBExecutor) (enrollment.RoleAssignment, error) {
	repo.db.assignment.Lock()
	defer repo.db.assignment.Unlock()
	repo.db.assignment.table[ra.ID] = &ra
	return ra, nil
}

func (repo *enrollmentRepository) GetRoleAssignmentByID(ctx context.Context, id string) (enrollment.RoleAssignment, error) {
	repo.db.assignment.RLock()
	defer repo.db.assignment.RUnlock()

	if ra, ok := repo.db.assignment.table[id]; ok {
		return *ra, nil
	}
	return enrollment.RoleAssignment{}, enrollment.ErrApplicationNotFound
}

func (repo *enrollmentRepository) QueryRoleAssignmentsByUserID(ctx context.Context, userID string) ([]enrollment.RoleAssignment, error) {
	repo.db.assignment.RLock()
	defer repo.db.assignment.RUnlock()

	assignments := make([]enrollment.RoleAssignment, 0)
	for _, ra := range repo.db.assignment.table {
		if ra.UserID == userID {
			assignments = append(assignments, *ra)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.Before(assignments[j].CreatedAt) })
	return assignments, nil
}

func (repo *enrollmentRepository) QueryRoleAssignments(ctx context.Context, statuses ...enrollment.ApplicationStatus) ([]enrollment.RoleAssignment, error) {
	repo.db.assignment.RLock()
	defer repo.db.assignment.RUnlock()

	assignments := make([]enrollment.RoleAssignment, 0, len(repo.db.assignment.table))
	for _, ra := range repo.db.assignment.table {
		if len(statuses) > 0 && !statusIn(ra.Status, statuses) {
			continue
		}
		assignments = append(assignments, *ra)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.After(assignments[j].CreatedAt) })
	return assignments, nil
}

func (repo *enrollmentRepository) SetApplicationStatus(ctx context.Context, id string, status enrollment.ApplicationStatus) error {
	repo.db.assignment.Lock()
	defer repo.db.assignment.Unlock()

	ra, ok := repo.db.assignment.table[id]
	if !ok {
		return enrollment.ErrApplicationNotFound
	}
	ra.Status = status
	return nil
}

func (repo *enrollmentRepository) CreateLearnerRegistration(ctx context.Context, lr enrollment.LearnerRegistration, exec ...core.DBExecutor) (enrollment.LearnerRegistration, error) {
	repo.db.learner.Lock()
	defer repo.db.learner.Unlock()
	repo.db.learner.table[lr.ID] = &lr
	return lr, nil
}

func (repo *enrollmentRepository) GetLearnerRegistrationByUserID(ctx context.Context, userID string) (enrollment.LearnerRegistration, error) {
	repo.db.learner.RLock()
	defer repo.db.learner.RUnlock()

	for _, lr := range repo.db.learner.table {
		if lr.UserID == userID {
			return *lr, nil
		}
	}
	return enrollment.LearnerRegistration{}, enrollment.ErrRegistrationNotFound
}

func (repo *enrollmentRepository) CreateStaffRegistration(ctx context.Context, sr enrollment.StaffRegistration, exec ...core.DBExecutor) (enrollment.StaffRegistration, error) {
	repo.db.staff.Lock()
	defer repo.db.staff.Unlock()
	repo.db.staff.table[sr.ID] = &sr
	return sr, nil
}

func (repo *enrollmentRepository) GetStaffRegistrationByUserID(ctx context.Context, userID string) (enrollment.StaffRegistration, error) {
	repo.db.staff.RLock()
	defer repo.db.staff.RUnlock()

	for _, sr := range repo.db.staff.table {
		if sr.UserID == userID {
			return *sr, nil
		}
	}
	return enrollment.StaffRegistration{}, enrollment.ErrRegistrationNotFound
}

func statusIn(s enrollment.ApplicationStatus, statuses []enrollment.ApplicationStatus) bool {
	for _, st := range statuses {
		if s == st {
			return true
		}
	}
	return false
}
