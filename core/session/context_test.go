package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/session"
	"github.com/kagisom/imfundo/core/user"
	emailsvc "github.com/kagisom/imfundo/services/email"
	inmemdb "github.com/kagisom/imfundo/storage/database/inmem"
	testutil "github.com/kagisom/imfundo/tests"
)

type testEnv struct {
	usrRepo user.Repository
	enrRepo enrollment.Repository
	usrSvc  user.Service
	enrSvc  enrollment.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	conf := testutil.NewConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrRepo := inmemdb.NewUserRepository(db)
	enrRepo := inmemdb.NewEnrollmentRepository(db)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)

	return &testEnv{
		usrRepo: usrRepo,
		enrRepo: enrRepo,
		usrSvc:  usrSvc,
		enrSvc:  enrollment.NewService(nil, enrRepo, usrSvc, mailSvc, testutil.Logger{}, conf),
	}
}

func staticToken(usr user.User) (string, error) { return "token-" + usr.ID, nil }

func TestContext_signInLoadsAccount(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	acct := testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "jane@gmail.com", "xK9#mPl2qR", enrollment.RoleLearner, enrollment.StatusAccepted)

	sess := session.NewContext(env.usrSvc, env.enrSvc, testutil.Logger{}, staticToken)
	defer sess.Close()

	require.NoError(t, sess.SignIn(ctx, "jane@gmail.com", "xK9#mPl2qR"))
	sess.Wait()

	snap := sess.Snapshot()
	require.NotNil(t, snap.Usr)
	assert.Equal(t, acct.Usr.ID, snap.Usr.ID)
	assert.Equal(t, "token-"+acct.Usr.ID, snap.Token)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, acct.Profile.ID, snap.Profile.ID)
	assert.False(t, snap.Loading)
	assert.True(t, snap.IsAccepted)
	assert.Equal(t, enrollment.RoleLearner, snap.PrimaryRole)
}

func TestContext_signOutClears(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "jane@gmail.com", "xK9#mPl2qR", enrollment.RoleLearner, enrollment.StatusAccepted)

	sess := session.NewContext(env.usrSvc, env.enrSvc, testutil.Logger{}, staticToken)
	defer sess.Close()

	require.NoError(t, sess.SignIn(ctx, "jane@gmail.com", "xK9#mPl2qR"))
	sess.Wait()
	sess.SignOut()

	snap := sess.Snapshot()
	assert.Nil(t, snap.Usr)
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.Profile)
	assert.Empty(t, snap.Roles)
	assert.False(t, snap.IsAccepted)
	assert.Equal(t, enrollment.Role(""), snap.PrimaryRole)
}

func TestContext_refreshPicksUpApproval(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	acct := testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "jane@gmail.com", "xK9#mPl2qR", enrollment.RoleLearner, enrollment.StatusPending)

	sess := session.NewContext(env.usrSvc, env.enrSvc, testutil.Logger{}, nil)
	defer sess.Close()

	require.NoError(t, sess.SignIn(ctx, "jane@gmail.com", "xK9#mPl2qR"))
	sess.Wait()

	snap := sess.Snapshot()
	assert.False(t, snap.IsAccepted)
	assert.Equal(t, enrollment.RoleLearner, snap.PrimaryRole)

	// an admin approves while the user is parked on the pending page
	admin := testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "admin@gmail.com", "xK9#mPl2qR", enrollment.RoleAdmin, enrollment.StatusAccepted)
	_, err := env.enrSvc.SetApplicationStatus(ctx, admin, acct.Roles[0].ID, enrollment.StatusAccepted)
	require.NoError(t, err)

	// nothing changes until a refresh
	assert.False(t, sess.Snapshot().IsAccepted)

	require.NoError(t, sess.RefreshProfile(ctx))
	snap = sess.Snapshot()
	assert.True(t, snap.IsAccepted)
	assert.Equal(t, enrollment.RoleLearner, snap.PrimaryRole)

	// refresh is idempotent
	require.NoError(t, sess.RefreshProfile(ctx))
	assert.Equal(t, snap.IsAccepted, sess.Snapshot().IsAccepted)
}

// gatedEnrollService blocks GetAccount until released, to race fetches
// against session changes.
type gatedEnrollService struct {
	enrollment.Service
	gate chan struct{}
}

func (svc *gatedEnrollService) GetAccount(ctx context.Context, userID string) (enrollment.Account, error) {
	<-svc.gate
	return svc.Service.GetAccount(ctx, userID)
}

func TestContext_staleFetchIsDiscarded(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	testutil.CreateAccount(t, env.usrRepo, env.enrRepo, "jane@gmail.com", "xK9#mPl2qR", enrollment.RoleLearner, enrollment.StatusAccepted)

	gated := &gatedEnrollService{Service: env.enrSvc, gate: make(chan struct{})}
	sess := session.NewContext(env.usrSvc, gated, testutil.Logger{}, nil)
	defer sess.Close()

	// the sign-in fetch is now parked on the gate
	require.NoError(t, sess.SignIn(ctx, "jane@gmail.com", "xK9#mPl2qR"))

	// sign out before the fetch completes, then release it
	sess.SignOut()
	close(gated.gate)
	sess.Wait()

	// the stale fetch result must not resurrect the cleared session
	snap := sess.Snapshot()
	assert.Nil(t, snap.Usr)
	assert.Nil(t, snap.Profile)
	assert.Empty(t, snap.Roles)
	assert.False(t, snap.IsAccepted)
}
