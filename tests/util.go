package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/user"
)

// NewConfig returns a self-contained test configuration; nothing is read
// from the environment.
func NewConfig() *core.Config {
	return &core.Config{
		TestMode:        true,
		Env:             "TEST",
		Build:           "test",
		AppName:         "Imfundo",
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",

		DefaultFromEmail: mail.Address{Name: "Imfundo", Address: "noreply@localhost"},

		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

// NewValidators returns a validator with every package's custom
// validations registered.
func NewValidators() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	return validate, translator
}

// Logger discards everything.
type Logger struct{}

var _ core.Logger = (*Logger)(nil)

func (Logger) Debug(msg string, args ...interface{}) {}
func (Logger) Info(msg string, args ...interface{})  {}
func (Logger) Warn(msg string, args ...interface{})  {}
func (Logger) Error(msg string, args ...interface{}) {}
func (Logger) Fatal(msg string, args ...interface{}) {}

func CreateUser(t *testing.T, repo user.Repository, email, pwd string, isActive bool, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateAccount creates a credential, profile and one role assignment.
func CreateAccount(
	t *testing.T,
	usrRepo user.Repository,
	enrRepo enrollment.Repository,
	email, pwd string,
	role enrollment.Role,
	status enrollment.ApplicationStatus,
	createdAt ...time.Time,
) enrollment.Account {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := CreateUser(t, usrRepo, email, pwd, true, tstamp)

	ctx := context.Background()
	profile, err := enrRepo.CreateProfile(ctx, enrollment.Profile{
		ID:              uuid.New().String(),
		UserID:          usr.ID,
		FirstName:       "Test",
		LastName:        "User",
		Email:           email,
		PhoneNumber:     "0821234567",
		IdentityNumber:  "9901015800086",
		Age:             27,
		PhysicalAddress: "12 Vilakazi Street, Orlando West",
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	})
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}

	assignment, err := enrRepo.CreateRoleAssignment(ctx, enrollment.RoleAssignment{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		Role:      role,
		Status:    status,
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}

	return enrollment.Account{Usr: usr, Profile: profile, Roles: []enrollment.RoleAssignment{assignment}}
}
