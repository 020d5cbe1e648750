package user

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kagisom/imfundo/core"
)

var (
	// errors
	ErrNotFound         = errors.New("user not found")
	ErrDuplicateAccount = errors.New("this email is already registered")
	ErrInvalidLogin     = errors.New("invalid credentials")
	ErrDeactivated      = errors.New("account deactivated")
)

// SessionEventType identifies why the current session changed.
type SessionEventType string

const (
	SessionSignedIn  SessionEventType = "signed_in"
	SessionSignedOut SessionEventType = "signed_out"
	SessionRefreshed SessionEventType = "token_refreshed"
)

// SessionEvent is emitted on every session change: sign-in, sign-out and
// token refresh. Usr is unset for sign-out events.
type SessionEvent struct {
	Type SessionEventType
	Usr  *User
}

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// UpdateUser only writes non-zero fields; isActive is applied when non-nil.
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		// Create adds a new credential. It fails with an ErrDuplicateAccount
		// ValidationError if the email is already registered. When exec is
		// given, the insert joins the caller's transaction.
		Create(ctx context.Context, nu NewUser, exec ...core.DBExecutor) (User, error)
		// Authenticate verifies the email/password pair, stamps LastLogin
		// and emits a signed-in session event.
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Deactivate(ctx context.Context, usr User) (User, error)
		// SignOut emits a signed-out session event. Sessions are stateless
		// tokens; there is nothing to revoke server-side.
		SignOut(usr User)
		NotifyRefreshed(usr User)
		// OnSessionChange registers fn to be called on every session change.
		// fn must not block. The returned func unsubscribes.
		OnSessionChange(fn func(SessionEvent)) (unsubscribe func())
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config

		mu        sync.Mutex
		nextSubID int
		subs      map[int]func(SessionEvent)
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		subs:    make(map[int]func(SessionEvent)),
	}
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedUsers...); err != nil {
		if errors.Cause(err) == ErrDuplicateAccount {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser, exec ...core.DBExecutor) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Email:     nu.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr, exec...)
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidLogin
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidLogin
	}
	if !usr.Active() {
		return User{}, ErrDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	svc.notify(SessionEvent{Type: SessionSignedIn, Usr: &usr})
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, User{ID: usr.ID, LastLogin: usr.LastLogin}, nil)
}

func (svc *service) Deactivate(ctx context.Context, usr User) (User, error) {
	active := false
	usr, err := svc.repo.UpdateUser(ctx, User{ID: usr.ID, UpdatedAt: time.Now().UTC()}, &active)
	if err != nil {
		return User{}, err
	}
	svc.sendDeactivationMail(usr)
	return usr, nil
}

func (svc *service) SignOut(usr User) {
	svc.notify(SessionEvent{Type: SessionSignedOut})
}

func (svc *service) NotifyRefreshed(usr User) {
	svc.notify(SessionEvent{Type: SessionRefreshed, Usr: &usr})
}

func (svc *service) OnSessionChange(fn func(SessionEvent)) func() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	id := svc.nextSubID
	svc.nextSubID++
	svc.subs[id] = fn
	return func() {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		delete(svc.subs, id)
	}
}

func (svc *service) notify(evt SessionEvent) {
	svc.mu.Lock()
	fns := make([]func(SessionEvent), 0, len(svc.subs))
	for _, fn := range svc.subs {
		fns = append(fns, fn)
	}
	svc.mu.Unlock()

	for _, fn := range fns {
		fn(evt)
	}
}

func (svc *service) sendDeactivationMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: usr.Email}},
		Subject: "Account deactivated",
		BodyStr: fmt.Sprintf("Your %s account has been deactivated. Contact the school office if you believe this is an error.", svc.conf.AppName),
	})
}
