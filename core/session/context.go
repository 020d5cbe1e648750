// Package session holds the authorization context: the single source of
// truth for "who is signed in and what can they do", re-derived on every
// session change.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/user"
)

// TokenFunc issues a session token for a freshly signed-in user.
type TokenFunc func(user.User) (string, error)

// Snapshot is an immutable view of the authorization context handed to
// consumers. Route decisions read the derived fields only.
type Snapshot struct {
	Usr     *user.User
	Token   string
	Profile *enrollment.Profile
	Roles   []enrollment.RoleAssignment
	Loading bool

	IsAccepted  bool
	PrimaryRole enrollment.Role
}

// Context subscribes to credential-store session changes and keeps the
// current profile and role assignments loaded. All mutation happens inside
// the context; consumers only ever see snapshots.
type Context struct {
	usrSvc  user.Service
	enrSvc  enrollment.Service
	logger  core.Logger
	tokenFn TokenFunc

	mu sync.Mutex
	// generation increments on every session change; an in-flight fetch
	// carries the generation it was started under and its result is
	// discarded if the generation moved on (e.g. a sign-out racing a
	// sign-in's profile fetch).
	generation uint64
	usr        *user.User
	token      string
	profile    *enrollment.Profile
	roles      []enrollment.RoleAssignment
	loading    bool

	fetches     sync.WaitGroup
	unsubscribe func()
}

func NewContext(usrSvc user.Service, enrSvc enrollment.Service, logger core.Logger, tokenFn TokenFunc) *Context {
	c := &Context{
		usrSvc:  usrSvc,
		enrSvc:  enrSvc,
		logger:  logger,
		tokenFn: tokenFn,
	}
	c.unsubscribe = usrSvc.OnSessionChange(c.handleSessionChange)
	return c
}

// Close unsubscribes from session changes and waits for in-flight fetches.
func (c *Context) Close() {
	c.unsubscribe()
	c.fetches.Wait()
}

// handleSessionChange must not block: the profile fetch runs on its own
// goroutine, tagged with the new generation.
func (c *Context) handleSessionChange(evt user.SessionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if evt.Usr == nil {
		c.usr = nil
		c.token = ""
		c.profile = nil
		c.roles = nil
		c.loading = false
		return
	}

	usr := *evt.Usr
	c.usr = &usr
	if c.tokenFn != nil {
		token, err := c.tokenFn(usr)
		if err != nil {
			c.logger.Error(fmt.Sprintf("issuing session token: %v", err), err)
		} else {
			c.token = token
		}
	}
	c.loading = true

	gen := c.generation
	c.fetches.Add(1)
	go func() {
		defer c.fetches.Done()
		c.fetch(context.Background(), gen, usr.ID)
	}()
}

// fetch loads the account and commits it only if the session has not
// changed since the fetch started.
func (c *Context) fetch(ctx context.Context, gen uint64, userID string) {
	acct, err := c.enrSvc.GetAccount(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return // stale: session changed while we were fetching
	}
	c.loading = false
	if err != nil {
		c.logger.Error(fmt.Sprintf("loading account %s: %v", userID, err), err)
		return
	}
	c.commit(acct)
}

func (c *Context) commit(acct enrollment.Account) {
	profile := acct.Profile
	c.profile = &profile
	c.roles = append([]enrollment.RoleAssignment(nil), acct.Roles...)
}

// SignUp creates a credential only; profiles and role assignments come from
// the registration workflow. The user is left signed in.
func (c *Context) SignUp(ctx context.Context, email, password string) error {
	_, err := c.usrSvc.Create(ctx, user.NewUser{
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
	})
	if err != nil {
		return err
	}
	_, err = c.usrSvc.Authenticate(ctx, email, password)
	return err
}

func (c *Context) SignIn(ctx context.Context, email, password string) error {
	_, err := c.usrSvc.Authenticate(ctx, email, password)
	return err
}

func (c *Context) SignOut() {
	c.mu.Lock()
	usr := c.usr
	c.mu.Unlock()
	if usr == nil {
		return
	}
	c.usrSvc.SignOut(*usr)
}

// RefreshProfile re-fetches profile and role assignments for the current
// user without waiting for a session event: the manual "check status"
// escape hatch.
func (c *Context) RefreshProfile(ctx context.Context) error {
	c.mu.Lock()
	if c.usr == nil {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	userID := c.usr.ID
	c.mu.Unlock()

	acct, err := c.enrSvc.GetAccount(ctx, userID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil // session changed mid-refresh; drop the result
	}
	c.commit(acct)
	return nil
}

// Wait blocks until event-triggered fetches settle. Test helper.
func (c *Context) Wait() {
	c.fetches.Wait()
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Token:   c.token,
		Loading: c.loading,
	}
	if c.usr != nil {
		usr := *c.usr
		snap.Usr = &usr
	}
	if c.profile != nil {
		profile := *c.profile
		snap.Profile = &profile
	}
	snap.Roles = append([]enrollment.RoleAssignment(nil), c.roles...)
	snap.IsAccepted = enrollment.IsAccepted(snap.Roles)
	snap.PrimaryRole = enrollment.PrimaryRole(snap.Roles)
	return snap
}
