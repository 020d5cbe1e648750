package enrollment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/user"
)

// Role is a dashboard a user can be admitted to.
type Role string

const (
	RoleLearner   Role = "learner"
	RoleTeacher   Role = "teacher"
	RoleGradeHead Role = "grade_head"
	RolePrincipal Role = "principal"
	RoleAdmin     Role = "admin"
	RoleSGB       Role = "sgb"
	RoleFinance   Role = "finance"
)

var (
	AllRoles = []Role{RoleLearner, RoleTeacher, RoleGradeHead, RolePrincipal, RoleAdmin, RoleSGB, RoleFinance}

	// StaffRoles are the roles a staff member may apply for.
	StaffRoles = []Role{RoleTeacher, RoleGradeHead, RolePrincipal, RoleAdmin}

	// RolePaths maps each role to the base path of its dashboard.
	RolePaths = map[Role]string{
		RoleLearner:   "/student",
		RoleTeacher:   "/teacher",
		RoleGradeHead: "/grade-head",
		RolePrincipal: "/principal",
		RoleAdmin:     "/admin",
		RoleSGB:       "/sgb",
		RoleFinance:   "/finance",
	}
)

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) IsStaff() bool {
	for _, role := range StaffRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Path returns the role's dashboard base path.
func (r Role) Path() string {
	return RolePaths[r]
}

// ApplicationStatus is the approval state of a role application.
// The only transitions are pending->accepted and pending->rejected,
// performed by an admin (or principal, for staff applications).
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusAccepted ApplicationStatus = "accepted"
	StatusRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) Valid() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusRejected
}

// GradeLevel is a primary-school grade, R through 7.
type GradeLevel string

const (
	GradeR GradeLevel = "R"
	Grade1 GradeLevel = "1"
	Grade2 GradeLevel = "2"
	Grade3 GradeLevel = "3"
	Grade4 GradeLevel = "4"
	Grade5 GradeLevel = "5"
	Grade6 GradeLevel = "6"
	Grade7 GradeLevel = "7"
)

var AllGrades = []GradeLevel{GradeR, Grade1, Grade2, Grade3, Grade4, Grade5, Grade6, Grade7}

func (g GradeLevel) Valid() bool {
	for _, grade := range AllGrades {
		if g == grade {
			return true
		}
	}
	return false
}

// Profile holds the personal record attached to a credential.
// Exactly one per user, created at registration completion.
type Profile struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	Email               string    `json:"email"`
	PhoneNumber         string    `json:"phone_number"`
	IdentityNumber      string    `json:"identity_number"`
	Age                 int       `json:"age"`
	PhysicalAddress     string    `json:"physical_address"`
	NextOfKinContact    string    `json:"next_of_kin_contact,omitempty"`
	BackupEmail         string    `json:"backup_email,omitempty"`
	IdentityDocumentURL string    `json:"identity_document_url,omitempty"`
	ProofOfAddressURL   string    `json:"proof_of_address_url,omitempty"`
	AvatarURL           string    `json:"avatar_url,omitempty"`
	CreatedAt           time.Time `json:"created_at"` // UTC
	UpdatedAt           time.Time `json:"updated_at"` // UTC
}

// RoleAssignment attaches a role application to a user. A user may hold
// several; each assignment's status is independent.
type RoleAssignment struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Role      Role              `json:"role"`
	Status    ApplicationStatus `json:"application_status"`
	CreatedAt time.Time         `json:"created_at"` // UTC
}

// PrimaryRole resolves the single role used for routing decisions:
// the first accepted assignment's role, else the first assignment of any
// status, else "".
func PrimaryRole(assignments []RoleAssignment) Role {
	for _, ra := range assignments {
		if ra.Status == StatusAccepted {
			return ra.Role
		}
	}
	if len(assignments) > 0 {
		return assignments[0].Role
	}
	return ""
}

// IsAccepted reports whether any assignment has been accepted.
func IsAccepted(assignments []RoleAssignment) bool {
	for _, ra := range assignments {
		if ra.Status == StatusAccepted {
			return true
		}
	}
	return false
}

// LearnerRegistration carries the learner-specific part of an application.
// Immutable after creation except by admin correction.
type LearnerRegistration struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	ApplyingForGrade    GradeLevel `json:"applying_for_grade"`
	PreviousGrade       GradeLevel `json:"previous_grade,omitempty"`
	ParentGuardianName  string     `json:"parent_guardian_name"`
	ParentGuardianPhone string     `json:"parent_guardian_phone"`
	ParentGuardianEmail string     `json:"parent_guardian_email,omitempty"`
	ParentGuardianIDURL string     `json:"parent_guardian_id_url"`
	PreviousReportURL   string     `json:"previous_report_url"`
	BankingDetailsURL   string     `json:"banking_details_url"`
	AssignedGrade       GradeLevel `json:"assigned_grade,omitempty"`
	AssignedSection     string     `json:"assigned_section,omitempty"`
	StudentNumber       string     `json:"student_number,omitempty"`
	CreatedAt           time.Time  `json:"created_at"` // UTC
}

// StaffRegistration carries the staff-specific part of an application.
type StaffRegistration struct {
	ID                       string       `json:"id"`
	UserID                   string       `json:"user_id"`
	GradesTeaching           []GradeLevel `json:"grades_teaching,omitempty"`
	SubjectsTeaching         []string     `json:"subjects_teaching,omitempty"`
	QualificationDocumentURL string       `json:"qualification_document_url"`
	StaffNumber              string       `json:"staff_number,omitempty"`
	CreatedAt                time.Time    `json:"created_at"` // UTC
}

// Account is an immutable snapshot of everything the authorization layer
// needs to know about a user.
type Account struct {
	Usr     user.User        `json:"user"`
	Profile Profile          `json:"profile"`
	Roles   []RoleAssignment `json:"roles"`
}

func (a Account) IsAccepted() bool  { return IsAccepted(a.Roles) }
func (a Account) PrimaryRole() Role { return PrimaryRole(a.Roles) }
func (a Account) IsAdmin() bool     { return a.IsAccepted() && a.PrimaryRole() == RoleAdmin }
func (a Account) IsPrincipal() bool { return a.IsAccepted() && a.PrimaryRole() == RolePrincipal }

// Application is the admin-facing review view: a role assignment joined
// with the applicant's profile and role-specific registration.
type Application struct {
	RoleAssignment
	Profile *Profile             `json:"profile,omitempty"`
	Learner *LearnerRegistration `json:"learner_registration,omitempty"`
	Staff   *StaffRegistration   `json:"staff_registration,omitempty"`
}

// LearnerApplication contains everything needed to register a learner.
// Document URLs are produced by prior, independent uploads.
type LearnerApplication struct {
	FirstName       string `json:"first_name" validate:"required,min=2,max=50"`
	LastName        string `json:"last_name" validate:"required,min=2,max=50"`
	Email           string `json:"email" validate:"required,email,gmail"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	PhoneNumber     string `json:"phone_number" validate:"required,saphone"`
	IdentityNumber  string `json:"identity_number" validate:"required,saidnum"`
	Age             int    `json:"age" validate:"required,min=4,max=15"`
	PhysicalAddress string `json:"physical_address" validate:"required,min=10"`

	ApplyingForGrade    GradeLevel `json:"applying_for_grade" validate:"required,grade"`
	PreviousGrade       GradeLevel `json:"previous_grade" validate:"omitempty,grade"`
	ParentGuardianName  string     `json:"parent_guardian_name" validate:"required,min=2"`
	ParentGuardianPhone string     `json:"parent_guardian_phone" validate:"required,saphone"`
	ParentGuardianEmail string     `json:"parent_guardian_email" validate:"omitempty,email,gmail"`
	NextOfKinContact    string     `json:"next_of_kin_contact" validate:"omitempty,saphone"`
	BackupEmail         string     `json:"backup_email" validate:"omitempty,email"`

	IdentityDocumentURL string `json:"identity_document_url" validate:"required,url"`
	ProofOfAddressURL   string `json:"proof_of_address_url" validate:"omitempty,url"`
	ParentGuardianIDURL string `json:"parent_guardian_id_url" validate:"required,url"`
	PreviousReportURL   string `json:"previous_report_url" validate:"required,url"`
	BankingDetailsURL   string `json:"banking_details_url" validate:"required,url"`
}

func (la *LearnerApplication) Validate(ctx context.Context, validate *validator.Validate, usrSvc user.Service) error {
	la.clean()
	if err := validate.Struct(la); err != nil {
		return err
	}
	return usrSvc.CheckEmailUniqueness(ctx, la.Email)
}

func (la *LearnerApplication) clean() {
	la.FirstName = core.CleanString(la.FirstName)
	la.LastName = core.CleanString(la.LastName)
	la.Email = core.CleanString(la.Email, true /* lower */)
	la.PhoneNumber = cleanPhone(la.PhoneNumber)
	la.IdentityNumber = core.CleanString(la.IdentityNumber)
	la.PhysicalAddress = core.CleanString(la.PhysicalAddress)
	la.ParentGuardianName = core.CleanString(la.ParentGuardianName)
	la.ParentGuardianPhone = cleanPhone(la.ParentGuardianPhone)
	la.ParentGuardianEmail = core.CleanString(la.ParentGuardianEmail, true)
	la.NextOfKinContact = cleanPhone(la.NextOfKinContact)
	la.BackupEmail = core.CleanString(la.BackupEmail, true)
}

// StaffApplication contains everything needed to register a staff member.
type StaffApplication struct {
	FirstName       string `json:"first_name" validate:"required,min=2,max=50"`
	LastName        string `json:"last_name" validate:"required,min=2,max=50"`
	Email           string `json:"email" validate:"required,email,gmail"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	PhoneNumber     string `json:"phone_number" validate:"required,saphone"`
	IdentityNumber  string `json:"identity_number" validate:"required,saidnum"`
	Age             int    `json:"age" validate:"required,min=21,max=70"`
	PhysicalAddress string `json:"physical_address" validate:"required,min=10"`

	Role             Role         `json:"role" validate:"required,staffrole"`
	GradesTeaching   []GradeLevel `json:"grades_teaching" validate:"omitempty,dive,grade"`
	SubjectsTeaching []string     `json:"subjects_teaching"`
	NextOfKinContact string       `json:"next_of_kin_contact" validate:"required,saphone"`
	BackupEmail      string       `json:"backup_email" validate:"omitempty,email"`

	IdentityDocumentURL      string `json:"identity_document_url" validate:"required,url"`
	ProofOfAddressURL        string `json:"proof_of_address_url" validate:"required,url"`
	QualificationDocumentURL string `json:"qualification_document_url" validate:"required,url"`
}

func (sa *StaffApplication) Validate(ctx context.Context, validate *validator.Validate, usrSvc user.Service) error {
	sa.clean()
	if err := validate.Struct(sa); err != nil {
		return err
	}
	return usrSvc.CheckEmailUniqueness(ctx, sa.Email)
}

func (sa *StaffApplication) clean() {
	sa.FirstName = core.CleanString(sa.FirstName)
	sa.LastName = core.CleanString(sa.LastName)
	sa.Email = core.CleanString(sa.Email, true /* lower */)
	sa.PhoneNumber = cleanPhone(sa.PhoneNumber)
	sa.IdentityNumber = core.CleanString(sa.IdentityNumber)
	sa.PhysicalAddress = core.CleanString(sa.PhysicalAddress)
	sa.NextOfKinContact = cleanPhone(sa.NextOfKinContact)
	sa.BackupEmail = core.CleanString(sa.BackupEmail, true)
}

// UpdateProfile defines what profile fields the owning user may change.
type UpdateProfile struct {
	PhoneNumber      string `json:"phone_number" validate:"omitempty,saphone"`
	PhysicalAddress  string `json:"physical_address" validate:"omitempty,min=10"`
	NextOfKinContact string `json:"next_of_kin_contact" validate:"omitempty,saphone"`
	BackupEmail      string `json:"backup_email" validate:"omitempty,email"`
	AvatarURL        string `json:"avatar_url" validate:"omitempty,url"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.PhoneNumber = cleanPhone(up.PhoneNumber)
	up.PhysicalAddress = core.CleanString(up.PhysicalAddress)
	up.NextOfKinContact = cleanPhone(up.NextOfKinContact)
	up.BackupEmail = core.CleanString(up.BackupEmail, true)
	return validate.Struct(up)
}
