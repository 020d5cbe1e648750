package enrollment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/user"
)

var (
	// errors
	ErrProfileNotFound      = errors.New("profile not found")
	ErrApplicationNotFound  = errors.New("application not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrInvalidStatus        = errors.New("status must be accepted or rejected")
)

type (
	Repository interface {
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfileByUserID(ctx context.Context, userID string) (Profile, error)
		QueryAllProfiles(ctx context.Context) ([]Profile, error)
		UpdateProfile(ctx context.Context, p Profile) (Profile, error)

		CreateRoleAssignment(ctx context.Context, ra RoleAssignment, exec ...core.DBExecutor) (RoleAssignment, error)
		GetRoleAssignmentByID(ctx context.Context, id string) (RoleAssignment, error)
		QueryRoleAssignmentsByUserID(ctx context.Context, userID string) ([]RoleAssignment, error)
		// QueryRoleAssignments returns all assignments, newest first,
		// optionally filtered by status.
		QueryRoleAssignments(ctx context.Context, statuses ...ApplicationStatus) ([]RoleAssignment, error)
		// SetApplicationStatus is a plain update: concurrent writers race and
		// the last write wins.
		SetApplicationStatus(ctx context.Context, id string, status ApplicationStatus) error

		CreateLearnerRegistration(ctx context.Context, lr LearnerRegistration, exec ...core.DBExecutor) (LearnerRegistration, error)
		GetLearnerRegistrationByUserID(ctx context.Context, userID string) (LearnerRegistration, error)
		CreateStaffRegistration(ctx context.Context, sr StaffRegistration, exec ...core.DBExecutor) (StaffRegistration, error)
		GetStaffRegistrationByUserID(ctx context.Context, userID string) (StaffRegistration, error)
	}

	Service interface {
		// RegisterLearner turns a learner application into a credential,
		// profile, role assignment and learner registration, created in a
		// single transaction.
		RegisterLearner(ctx context.Context, app LearnerApplication) (Account, error)
		// RegisterStaff does the same for a staff application, for the role
		// the applicant chose.
		RegisterStaff(ctx context.Context, app StaffApplication) (Account, error)
		// GetAccount loads the profile and role assignments for a user.
		GetAccount(ctx context.Context, userID string) (Account, error)
		UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Profile, error)
		// QueryApplications returns the admin review view, newest first.
		QueryApplications(ctx context.Context, statuses ...ApplicationStatus) ([]Application, error)
		// SetApplicationStatus transitions an application to accepted or
		// rejected. The actor must be an accepted admin, or an accepted
		// principal reviewing a staff application. Last write wins.
		SetApplicationStatus(ctx context.Context, actor Account, assignmentID string, status ApplicationStatus) (RoleAssignment, error)
	}

	service struct {
		db      core.DB // nil with the in-memory repositories
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, usrSvc user.Service, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *service {
	return &service{
		db:      db,
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

// statusForRole implements the registration-time approval rule: admin
// applications are auto-accepted, everything else starts pending.
//
// Auto-accepting self-service admin sign-ups is an inherited behavior and a
// privilege-escalation surface; it is kept for compatibility, isolated here
// and logged loudly so deployments can audit (or patch) it.
func (svc *service) statusForRole(role Role, email string) ApplicationStatus {
	if role == RoleAdmin {
		svc.logger.Warn(fmt.Sprintf("auto-accepting admin registration for %s", email))
		return StatusAccepted
	}
	return StatusPending
}

// begin opens a transaction when a database is present. The in-memory
// repositories keep their own consistency, so a nil db skips transactions.
func (svc *service) begin(ctx context.Context) ([]core.DBExecutor, func() error, func() error, error) {
	if svc.db == nil {
		noop := func() error { return nil }
		return nil, noop, noop, nil
	}
	tx, err := svc.db.Begin(ctx)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "beginning transaction")
	}
	return []core.DBExecutor{tx}, tx.Commit, tx.Rollback, nil
}

func (svc *service) RegisterLearner(ctx context.Context, app LearnerApplication) (Account, error) {
	now := time.Now().UTC()

	exec, commit, rollback, err := svc.begin(ctx)
	if err != nil {
		return Account{}, err
	}

	usr, err := svc.usrSvc.Create(ctx, user.NewUser{
		Email:           app.Email,
		Password:        app.Password,
		PasswordConfirm: app.PasswordConfirm,
	}, exec...)
	if err != nil {
		_ = rollback()
		return Account{}, errors.Wrap(err, "creating credential")
	}

	profile, err := svc.repo.CreateProfile(ctx, Profile{
		ID:                  uuid.New().String(),
		UserID:              usr.ID,
		FirstName:           app.FirstName,
		LastName:            app.LastName,
		Email:               app.Email,
		PhoneNumber:         app.PhoneNumber,
		IdentityNumber:      app.IdentityNumber,
		Age:                 app.Age,
		PhysicalAddress:     app.PhysicalAddress,
		NextOfKinContact:    app.NextOfKinContact,
		BackupEmail:         app.BackupEmail,
		IdentityDocumentURL: app.IdentityDocumentURL,
		ProofOfAddressURL:   app.ProofOfAddressURL,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, exec...)
	if err != nil {
		_ = rollback()
		return Account{}, errors.Wrap(err, "creating profile")
	}

	assignment, err := svc.repo.CreateRoleAssignment(ctx, RoleAssignment{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		Role:      RoleLearner,
		Status:    svc.statusForRole(RoleLearner, app.Email),
		CreatedAt: now,
	}, exec...)
	if err != nil {
		_ = rollback()
		return Account{}, errors.Wrap(err, "creating role assignment")
	}

	if _, err = svc.repo.CreateLearnerRegistration(ctx, LearnerRegistration{
		ID:                  uuid.New().String(),
		UserID:              usr.ID,
		ApplyingForGrade:    app.ApplyingForGrade,
		PreviousGrade:       app.PreviousGrade,
		ParentGuardianName:  app.ParentGuardianName,
		ParentGuardianPhone: app.ParentGuardianPhone,
		ParentGuardianEmail: app.ParentGuardianEmail,
		ParentGuardianIDURL: app.ParentGuardianIDURL,
		PreviousReportURL:   app.PreviousReportURL,
		BankingDetailsURL:   app.BankingDetailsURL,
		CreatedAt:           now,
	}, exec...); err != nil {
		_ = rollback()
		return Account{}, errors.Wrap(err, "creating learner registration")
	}

	if err = commit(); err != nil {
		return Account{}, errors.Wrap(err, "committing registration")
	}

	acct := Account{Usr: usr, Profile: profile, Roles: []RoleAssignment{assignment}}
	svc.sendApplicationReceivedMail(acct)
	return acct, nil
}

func (svc *service) RegisterStaff(ctx context.Context, app StaffApplication) (Account, error) {
	now := time.Now().UTC()

	exec, commit, rollback, err := svc.begin(ctx)
	if err != nil {
		return Account{}, err
	}

	usr, err := svc.usrSvc.Create(ctx, user.NewUser{
		Email:           app.Email,
		Password:        app.Password,
		PasswordConfirm: app.PasswordConfirm,
	}, exec...)
	if err != nil {
		_ = rollback()
		return Account{}, errors.Wrap(err, "creating credential")
	}

	profile, err := svc.repo.CreateProfile(ctx, Profile{
		ID:                  uuid.New().String(),
		UserID:              usr.ID,
		FirstName:           app.FirstName,
		LastName:            app.LastName,
		Email:               app.Email,
		PhoneNumber:         app.PhoneNumber,
		IdentityNumber:      app.IdentityNumber,
		Age:                 app.Age,
		PhysicalAddress:     app.PhysicalAddress,
		NextOfKinContact:    app.NextOfKinContact,
		BackupEmail:         app.BackupEmail,
		IdentityDocumentURL: app.IdentityDocumentURL,
		ProofOfAddressURL:   app.ProofOfAddressURL,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, exec...)
	if err != nil {
		_ = rollback()
		return Account{}, errors.Wrap(err, "creating profile")
	}

	assignment, err := svc.repo.CreateRoleAssignment(ctx, RoleAssignment{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		Role:      app.Role,
		Status:    svc.statusForRole(app.Role, app.Email),
		CreatedAt: now,
	}, exec...)
	if err != nil {
		_ = rollback()
		return Account{}, errors.Wrap(err, "creating role assignment")
	}

	if _, err = svc.repo.CreateStaffRegistration(ctx, StaffRegistration{
		ID:                       uuid.New().String(),
		UserID:                   usr.ID,
		GradesTeaching:           app.GradesTeaching,
		SubjectsTeaching:         app.SubjectsTeaching,
		QualificationDocumentURL: app.QualificationDocumentURL,
		CreatedAt:                now,
	}, exec...); err != nil {
		_ = rollback()
		return Account{}, errors.Wrap(err, "creating staff registration")
	}

	if err = commit(); err != nil {
		return Account{}, errors.Wrap(err, "committing registration")
	}

	acct := Account{Usr: usr, Profile: profile, Roles: []RoleAssignment{assignment}}
	svc.sendApplicationReceivedMail(acct)
	return acct, nil
}

func (svc *service) GetAccount(ctx context.Context, userID string) (Account, error) {
	usr, err := svc.usrSvc.GetByID(ctx, userID)
	if err != nil {
		return Account{}, errors.Wrap(err, "finding user by ID")
	}

	acct := Account{Usr: usr}
	profile, err := svc.repo.GetProfileByUserID(ctx, userID)
	switch errors.Cause(err) {
	case nil:
		acct.Profile = profile
	case ErrProfileNotFound:
		// an orphaned credential has no profile yet; roles may still exist
	default:
		return Account{}, errors.Wrap(err, "finding profile")
	}

	roles, err := svc.repo.QueryRoleAssignmentsByUserID(ctx, userID)
	if err != nil {
		return Account{}, errors.Wrap(err, "querying role assignments")
	}
	acct.Roles = roles
	return acct, nil
}

func (svc *service) UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Profile, error) {
	profile, err := svc.repo.GetProfileByUserID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	if up.PhoneNumber != "" {
		profile.PhoneNumber = up.PhoneNumber
	}
	if up.PhysicalAddress != "" {
		profile.PhysicalAddress = up.PhysicalAddress
	}
	if up.NextOfKinContact != "" {
		profile.NextOfKinContact = up.NextOfKinContact
	}
	if up.BackupEmail != "" {
		profile.BackupEmail = up.BackupEmail
	}
	if up.AvatarURL != "" {
		profile.AvatarURL = up.AvatarURL
	}
	profile.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProfile(ctx, profile)
}

func (svc *service) QueryApplications(ctx context.Context, statuses ...ApplicationStatus) ([]Application, error) {
	assignments, err := svc.repo.QueryRoleAssignments(ctx, statuses...)
	if err != nil {
		return nil, errors.Wrap(err, "querying role assignments")
	}

	apps := make([]Application, 0, len(assignments))
	for _, ra := range assignments {
		app := Application{RoleAssignment: ra}

		if profile, err := svc.repo.GetProfileByUserID(ctx, ra.UserID); err == nil {
			app.Profile = &profile
		} else if errors.Cause(err) != ErrProfileNotFound {
			return nil, errors.Wrap(err, "finding applicant profile")
		}

		if ra.Role == RoleLearner {
			if lr, err := svc.repo.GetLearnerRegistrationByUserID(ctx, ra.UserID); err == nil {
				app.Learner = &lr
			} else if errors.Cause(err) != ErrRegistrationNotFound {
				return nil, errors.Wrap(err, "finding learner registration")
			}
		} else {
			if sr, err := svc.repo.GetStaffRegistrationByUserID(ctx, ra.UserID); err == nil {
				app.Staff = &sr
			} else if errors.Cause(err) != ErrRegistrationNotFound {
				return nil, errors.Wrap(err, "finding staff registration")
			}
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (svc *service) SetApplicationStatus(ctx context.Context, actor Account, assignmentID string, status ApplicationStatus) (RoleAssignment, error) {
	if status != StatusAccepted && status != StatusRejected {
		return RoleAssignment{}, ErrInvalidStatus
	}

	assignment, err := svc.repo.GetRoleAssignmentByID(ctx, assignmentID)
	if err != nil {
		return RoleAssignment{}, err
	}

	if !svc.canReview(actor, assignment) {
		return RoleAssignment{}, ErrPermissionDenied
	}

	if err = svc.repo.SetApplicationStatus(ctx, assignmentID, status); err != nil {
		return RoleAssignment{}, errors.Wrap(err, "updating application status")
	}
	assignment.Status = status

	svc.logger.Info(fmt.Sprintf("application %s (%s) %s by %s", assignmentID, assignment.Role, status, actor.Usr.Email))
	svc.sendApplicationDecidedMail(assignment)
	return assignment, nil
}

// canReview: admins review everything; principals review staff applications only.
func (svc *service) canReview(actor Account, assignment RoleAssignment) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.IsPrincipal() && assignment.Role.IsStaff()
}

func (svc *service) sendApplicationReceivedMail(acct Account) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: acct.Profile.FirstName + " " + acct.Profile.LastName, Address: acct.Usr.Email}},
		Subject: "Application received",
		BodyStr: fmt.Sprintf(
			"Dear %s,\n\nYour application has been submitted for review. "+
				"You will be notified once it has been processed.\n\nCheck your status any time at %s/pending.",
			acct.Profile.FirstName, svc.conf.FrontendBaseURL,
		),
	})
}

func (svc *service) sendApplicationDecidedMail(assignment RoleAssignment) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	profile, err := svc.repo.GetProfileByUserID(ctx, assignment.UserID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("finding profile for decision mail: %v", err), err)
		return
	}

	body := fmt.Sprintf(
		"Dear %s,\n\nYour %s application has been %s.",
		profile.FirstName, assignment.Role, assignment.Status,
	)
	if assignment.Status == StatusAccepted {
		body += fmt.Sprintf("\n\nSign in at %s to access your dashboard.", svc.conf.FrontendBaseURL)
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: profile.FirstName + " " + profile.LastName, Address: profile.Email}},
		Subject: fmt.Sprintf("Application %s", assignment.Status),
		BodyStr: body,
	})
}
