package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/user"
	emailsvc "github.com/kagisom/imfundo/services/email"
	inmemdb "github.com/kagisom/imfundo/storage/database/inmem"
	testutil "github.com/kagisom/imfundo/tests"
)

func setup(t *testing.T) (user.Service, user.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	conf := testutil.NewConfig()
	repo := inmemdb.NewUserRepository(db)
	return user.NewServiceMock(repo, emailsvc.NewConsoleServiceMock(conf), conf), repo
}

func Test_service_Create(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{
		Email:           "jane@gmail.com",
		Password:        "xK9#mPl2qR",
		PasswordConfirm: "xK9#mPl2qR",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword("xK9#mPl2qR"))
	assert.Error(t, usr.CheckPassword("wrong"))

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Create(ctx, user.NewUser{
			Email:           "jane@gmail.com",
			Password:        "xK9#mPl2qR",
			PasswordConfirm: "xK9#mPl2qR",
		})
		assert.Equal(t, user.ErrDuplicateAccount, errors.Cause(err))
	})
}

func Test_service_CheckEmailUniqueness(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "jane@gmail.com", "xK9#mPl2qR", true)

	assert.NoError(t, svc.CheckEmailUniqueness(ctx, "other@gmail.com"))

	err := svc.CheckEmailUniqueness(ctx, "jane@gmail.com")
	require.Error(t, err)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "email", vErr.Fields[0].Field)

	// the owner is excluded when updating their own record
	assert.NoError(t, svc.CheckEmailUniqueness(ctx, "jane@gmail.com", usr))
}

func Test_service_Authenticate(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "jane@gmail.com", "xK9#mPl2qR", true)
	deactivated := testutil.CreateUser(t, repo, "gone@gmail.com", "xK9#mPl2qR", false)

	var events []user.SessionEvent
	unsub := svc.OnSessionChange(func(evt user.SessionEvent) { events = append(events, evt) })
	defer unsub()

	t.Run("wrong email", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nope@gmail.com", "xK9#mPl2qR")
		assert.Equal(t, user.ErrInvalidLogin, errors.Cause(err))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "jane@gmail.com", "wrong")
		assert.Equal(t, user.ErrInvalidLogin, errors.Cause(err))
	})

	t.Run("deactivated account", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, deactivated.Email, "xK9#mPl2qR")
		assert.Equal(t, user.ErrDeactivated, errors.Cause(err))
	})

	t.Run("success stamps last login and emits event", func(t *testing.T) {
		events = events[:0]
		got, err := svc.Authenticate(ctx, "JANE@gmail.com", "xK9#mPl2qR")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, got.ID)
		assert.False(t, got.LastLogin.IsZero())

		require.Len(t, events, 1)
		assert.Equal(t, user.SessionSignedIn, events[0].Type)
		require.NotNil(t, events[0].Usr)
		assert.Equal(t, usr.ID, events[0].Usr.ID)
	})

	t.Run("sign out emits event without a user", func(t *testing.T) {
		events = events[:0]
		svc.SignOut(usr)
		require.Len(t, events, 1)
		assert.Equal(t, user.SessionSignedOut, events[0].Type)
		assert.Nil(t, events[0].Usr)
	})
}
