package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
)

type profileRow struct {
	ID                  string      `db:"id"`
	UserID              string      `db:"user_id"`
	FirstName           string      `db:"first_name"`
	LastName            string      `db:"last_name"`
	Email               string      `db:"email"`
	PhoneNumber         string      `db:"phone_number"`
	IdentityNumber      string      `db:"identity_number"`
	Age                 int         `db:"age"`
	PhysicalAddress     string      `db:"physical_address"`
	NextOfKinContact    null.String `db:"next_of_kin_contact"`
	BackupEmail         null.String `db:"backup_email"`
	IdentityDocumentURL null.String `db:"identity_document_url"`
	ProofOfAddressURL   null.String `db:"proof_of_address_url"`
	AvatarURL           null.String `db:"avatar_url"`
	CreatedAt           time.Time   `db:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at"`
}

func (r profileRow) toProfile() enrollment.Profile {
	return enrollment.Profile{
		ID:                  r.ID,
		UserID:              r.UserID,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		Email:               r.Email,
		PhoneNumber:         r.PhoneNumber,
		IdentityNumber:      r.IdentityNumber,
		Age:                 r.Age,
		PhysicalAddress:     r.PhysicalAddress,
		NextOfKinContact:    r.NextOfKinContact.String,
		BackupEmail:         r.BackupEmail.String,
		IdentityDocumentURL: r.IdentityDocumentURL.String,
		ProofOfAddressURL:   r.ProofOfAddressURL.String,
		AvatarURL:           r.AvatarURL.String,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

type roleAssignmentRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	Status    string    `db:"application_status"`
	CreatedAt time.Time `db:"created_at"`
}

func (r roleAssignmentRow) toRoleAssignment() enrollment.RoleAssignment {
	return enrollment.RoleAssignment{
		ID:        r.ID,
		UserID:    r.UserID,
		Role:      enrollment.Role(r.Role),
		Status:    enrollment.ApplicationStatus(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

type learnerRegistrationRow struct {
	ID                  string      `db:"id"`
	UserID              string      `db:"user_id"`
	ApplyingForGrade    string      `db:"applying_for_grade"`
	PreviousGrade       null.String `db:"previous_grade"`
	ParentGuardianName  string      `db:"parent_guardian_name"`
	ParentGuardianPhone string      `db:"parent_guardian_phone"`
	ParentGuardianEmail null.String `db:"parent_guardian_email"`
	ParentGuardianIDURL string      `db:"parent_guardian_id_url"`
	PreviousReportURL   string      `db:"previous_report_url"`
	BankingDetailsURL   string      `db:"banking_details_url"`
	AssignedGrade       null.String `db:"assigned_grade"`
	AssignedSection     null.String `db:"assigned_section"`
	StudentNumber       null.String `db:"student_number"`
	CreatedAt           time.Time   `db:"created_at"`
}

func (r learnerRegistrationRow) toLearnerRegistration() enrollment.LearnerRegistration {
	return enrollment.LearnerRegistration{
		ID:                  r.ID,
		UserID:              r.UserID,
		ApplyingForGrade:    enrollment.GradeLevel(r.ApplyingForGrade),
		PreviousGrade:       enrollment.GradeLevel(r.PreviousGrade.String),
		ParentGuardianName:  r.ParentGuardianName,
		ParentGuardianPhone: r.ParentGuardianPhone,
		ParentGuardianEmail: r.ParentGuardianEmail.String,
		ParentGuardianIDURL: r.ParentGuardianIDURL,
		PreviousReportURL:   r.PreviousReportURL,
		BankingDetailsURL:   r.BankingDetailsURL,
		AssignedGrade:       enrollment.GradeLevel(r.AssignedGrade.String),
		AssignedSection:     r.AssignedSection.String,
		StudentNumber:       r.StudentNumber.String,
		CreatedAt:           r.CreatedAt,
	}
}

type staffRegistrationRow struct {
	ID                       string         `db:"id"`
	UserID                   string         `db:"user_id"`
	GradesTeaching           pq.StringArray `db:"grades_teaching"`
	SubjectsTeaching         pq.StringArray `db:"subjects_teaching"`
	QualificationDocumentURL string         `db:"qualification_document_url"`
	StaffNumber              null.String    `db:"staff_number"`
	CreatedAt                time.Time      `db:"created_at"`
}

func (r staffRegistrationRow) toStaffRegistration() enrollment.StaffRegistration {
	grades := make([]enrollment.GradeLevel, 0, len(r.GradesTeaching))
	for _, g := range r.GradesTeaching {
		grades = append(grades, enrollment.GradeLevel(g))
	}
	return enrollment.StaffRegistration{
		ID:                       r.ID,
		UserID:                   r.UserID,
		GradesTeaching:           grades,
		SubjectsTeaching:         r.SubjectsTeaching,
		QualificationDocumentURL: r.QualificationDocumentURL,
		StaffNumber:              r.StaffNumber.String,
		CreatedAt:                r.CreatedAt,
	}
}

type enrollmentRepository struct {
	db core.DBExecutor
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db core.DBExecutor) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 {
		return exec[0]
	}
	return repo.db
}

func (repo enrollmentRepository) CreateProfile(ctx context.Context, p enrollment.Profile, exec ...core.DBExecutor) (enrollment.Profile, error) {
	query := `
INSERT INTO profile (id, user_id, first_name, last_name, email, phone_number, identity_number, age,
                     physical_address, next_of_kin_contact, backup_email, identity_document_url,
                     proof_of_address_url, avatar_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := repo.getExec(exec).ExecContext(
		ctx, query,
		p.ID, p.UserID, p.FirstName, p.LastName, p.Email, p.PhoneNumber, p.IdentityNumber, p.Age,
		p.PhysicalAddress,
		null.NewString(p.NextOfKinContact, p.NextOfKinContact != ""),
		null.NewString(p.BackupEmail, p.BackupEmail != ""),
		null.NewString(p.IdentityDocumentURL, p.IdentityDocumentURL != ""),
		null.NewString(p.ProofOfAddressURL, p.ProofOfAddressURL != ""),
		null.NewString(p.AvatarURL, p.AvatarURL != ""),
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return enrollment.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return p, nil
}

func (repo enrollmentRepository) GetProfileByUserID(ctx context.Context, userID string) (enrollment.Profile, error) {
	var row profileRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM profile WHERE user_id = $1`, userID); err != nil {
		return enrollment.Profile{}, trapNoRowsErr(err, enrollment.ErrProfileNotFound, "finding profile")
	}
	return row.toProfile(), nil
}

func (repo enrollmentRepository) QueryAllProfiles(ctx context.Context) ([]enrollment.Profile, error) {
	var rows []profileRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM profile ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	profiles := make([]enrollment.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.toProfile())
	}
	return profiles, nil
}

func (repo enrollmentRepository) UpdateProfile(ctx context.Context, p enrollment.Profile) (enrollment.Profile, error) {
	query := `
UPDATE profile
SET phone_number = $1, physical_address = $2, next_of_kin_contact = $3, backup_email = $4,
    avatar_url = $5, updated_at = $6
WHERE id = $7`
	res, err := repo.db.ExecContext(
		ctx, query,
		p.PhoneNumber, p.PhysicalAddress,
		null.NewString(p.NextOfKinContact, p.NextOfKinContact != ""),
		null.NewString(p.BackupEmail, p.BackupEmail != ""),
		null.NewString(p.AvatarURL, p.AvatarURL != ""),
		p.UpdatedAt.UTC(), p.ID,
	)
	if err != nil {
		return enrollment.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrollment.Profile{}, enrollment.ErrProfileNotFound
	}
	return p, nil
}

func (repo enrollmentRepository) CreateRoleAssignment(ctx context.Context, ra enrollment.RoleAssignment, exec ...core.DBExecutor) (enrollment.RoleAssignment, error) {
	query := `
INSERT INTO user_role (id, user_id, role, application_status, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := repo.getExec(exec).ExecContext(ctx, query, ra.ID, ra.UserID, string(ra.Role), string(ra.Status), ra.CreatedAt.UTC())
	if err != nil {
		return enrollment.RoleAssignment{}, errors.Wrap(err, "inserting role assignment")
	}
	return ra, nil
}

func (repo enrollmentRepository) GetRoleAssignmentByID(ctx context.Context, id string) (enrollment.RoleAssignment, error) {
	var row roleAssignmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM user_role WHERE id = $1`, id); err != nil {
		return enrollment.RoleAssignment{}, trapNoRowsErr(err, enrollment.ErrApplicationNotFound, "finding role assignment")
	}
	return row.toRoleAssignment(), nil
}

func (repo enrollmentRepository) QueryRoleAssignmentsByUserID(ctx context.Context, userID string) ([]enrollment.RoleAssignment, error) {
	var rows []roleAssignmentRow
	query := `SELECT * FROM user_role WHERE user_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying role assignments")
	}
	assignments := make([]enrollment.RoleAssignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.toRoleAssignment())
	}
	return assignments, nil
}

func (repo enrollmentRepository) QueryRoleAssignments(ctx context.Context, statuses ...enrollment.ApplicationStatus) ([]enrollment.RoleAssignment, error) {
	query := `SELECT * FROM user_role`
	args := make([]interface{}, 0, 1)
	if len(statuses) > 0 {
		vals := make([]string, 0, len(statuses))
		for _, s := range statuses {
			vals = append(vals, string(s))
		}
		query += ` WHERE application_status = ANY($1)`
		args = append(args, pq.Array(vals))
	}
	query += ` ORDER BY created_at DESC`

	var rows []roleAssignmentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying role assignments")
	}
	assignments := make([]enrollment.RoleAssignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.toRoleAssignment())
	}
	return assignments, nil
}

func (repo enrollmentRepository) SetApplicationStatus(ctx context.Context, id string, status enrollment.ApplicationStatus) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE user_role SET application_status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return errors.Wrap(err, "updating application status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrollment.ErrApplicationNotFound
	}
	return nil
}

func (repo enrollmentRepository) CreateLearnerRegistration(ctx context.Context, lr enrollment.LearnerRegistration, exec ...core.DBExecutor) (enrollment.LearnerRegistration, error) {
	query := `
INSERT INTO learner_registration (id, user_id, applying_for_grade, previous_grade, parent_guardian_name,
                                  parent_guardian_phone, parent_guardian_email, parent_guardian_id_url,
                                  previous_report_url, banking_details_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.getExec(exec).ExecContext(
		ctx, query,
		lr.ID, lr.UserID, string(lr.ApplyingForGrade),
		null.NewString(string(lr.PreviousGrade), lr.PreviousGrade != ""),
		lr.ParentGuardianName, lr.ParentGuardianPhone,
		null.NewString(lr.ParentGuardianEmail, lr.ParentGuardianEmail != ""),
		lr.ParentGuardianIDURL, lr.PreviousReportURL, lr.BankingDetailsURL,
		lr.CreatedAt.UTC(),
	)
	if err != nil {
		return enrollment.LearnerRegistration{}, errors.Wrap(err, "inserting learner registration")
	}
	return lr, nil
}

func (repo enrollmentRepository) GetLearnerRegistrationByUserID(ctx context.Context, userID string) (enrollment.LearnerRegistration, error) {
	var row learnerRegistrationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM learner_registration WHERE user_id = $1`, userID); err != nil {
		return enrollment.LearnerRegistration{}, trapNoRowsErr(err, enrollment.ErrRegistrationNotFound, "finding learner registration")
	}
	return row.toLearnerRegistration(), nil
}

func (repo enrollmentRepository) CreateStaffRegistration(ctx context.Context, sr enrollment.StaffRegistration, exec ...core.DBExecutor) (enrollment.StaffRegistration, error) {
	grades := make([]string, 0, len(sr.GradesTeaching))
	for _, g := range sr.GradesTeaching {
		grades = append(grades, string(g))
	}

	query := `
INSERT INTO staff_registration (id, user_id, grades_teaching, subjects_teaching,
                                qualification_document_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.getExec(exec).ExecContext(
		ctx, query,
		sr.ID, sr.UserID, pq.Array(grades), pq.Array(sr.SubjectsTeaching),
		sr.QualificationDocumentURL, sr.CreatedAt.UTC(),
	)
	if err != nil {
		return enrollment.StaffRegistration{}, errors.Wrap(err, "inserting staff registration")
	}
	return sr, nil
}

func (repo enrollmentRepository) GetStaffRegistrationByUserID(ctx context.Context, userID string) (enrollment.StaffRegistration, error) {
	var row staffRegistrationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM staff_registration WHERE user_id = $1`, userID); err != nil {
		return enrollment.StaffRegistration{}, trapNoRowsErr(err, enrollment.ErrRegistrationNotFound, "finding staff registration")
	}
	return row.toStaffRegistration(), nil
}
