package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/user"
	emailsvc "github.com/kagisom/imfundo/services/email"
	"github.com/kagisom/imfundo/storage/database"
	inmemdb "github.com/kagisom/imfundo/storage/database/inmem"
	testutil "github.com/kagisom/imfundo/tests"
)

var (
	usrRepo user.Repository
	enrRepo enrollment.Repository
)

func setup(t *testing.T) *commandLine {
	std = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo = inmemdb.NewUserRepository(db)
	enrRepo = inmemdb.NewEnrollmentRepository(db)

	conf := testutil.NewConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	enrSvc := enrollment.NewService(nil, enrRepo, usrSvc, mailSvc, testutil.Logger{}, conf)

	// start CLI
	return &commandLine{
		db:         database.DB{DB: new(sqlx.DB)},
		conf:       conf,
		logger:     testutil.Logger{},
		usrSvc:     usrSvc,
		userRepo:   usrRepo,
		enrollSvc:  enrSvc,
		enrollRepo: enrRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, onSuccess func(t *testing.T, tt cliTest)) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				if tt.wantErr != nil || tt.wantErrStr != "" {
					t.Fatalf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
				}
				if onSuccess != nil {
					onSuccess(t, tt)
				}
				return
			}
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			} else if tt.wantErrStr != "" {
				if err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
				}
			} else {
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version", "fix": // pass
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	runCLITests(t, cli, tests, nil)
}

func Test_commandLine_addAdmin(t *testing.T) {
	cli := setup(t)

	existing := testutil.CreateAccount(t, usrRepo, enrRepo, "teacher@gmail.com", "xK9#mPl2qR", enrollment.RoleTeacher, enrollment.StatusAccepted)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addadmin"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"addadmin", "-email", "root@gmail.com"}, wantErr: errHelp},
		{name: "new credential", args: []string{"addadmin", "-email", "root@gmail.com"}, pwd: "xK9#mPl2qR"},
		{name: "existing credential", args: []string{"addadmin", "-email", existing.Usr.Email}, pwd: "xK9#mPl2qR"},
		{name: "already an admin", args: []string{"addadmin", "-email", "root@gmail.com"}, pwd: "xK9#mPl2qR"},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		email := tt.args[2]
		usr, err := cli.usrSvc.GetByEmail(context.Background(), email)
		if err != nil {
			t.Fatalf("GetByEmail() failed: %v", err)
		}
		acct, err := cli.enrollSvc.GetAccount(context.Background(), usr.ID)
		if err != nil {
			t.Fatalf("GetAccount() failed: %v", err)
		}
		granted := false
		for _, ra := range acct.Roles {
			if ra.Role == enrollment.RoleAdmin && ra.Status == enrollment.StatusAccepted {
				granted = true
			}
		}
		if !granted {
			t.Errorf("%s has no accepted admin role; roles %v", email, acct.Roles)
		}
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateAccount(t, usrRepo, enrRepo, "jane@gmail.com", "xK9#mPl2qR", enrollment.RoleLearner, enrollment.StatusAccepted).Usr

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", usr.Email}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@gmail.com"}, pwd: "nP3$wQr8xZ", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, pwd: "nP3$wQr8xZ"},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed: %v", err)
		}
		if err := refreshed.CheckPassword(tt.pwd); err != nil {
			t.Error("failed to update new password")
		}
	})
}

func Test_commandLine_checkStatus(t *testing.T) {
	cli := setup(t)

	testutil.CreateAccount(t, usrRepo, enrRepo, "sipho@gmail.com", "xK9#mPl2qR", enrollment.RoleTeacher, enrollment.StatusPending)

	tests := []cliTest{
		{name: "no args", args: []string{"checkstatus"}, wantErr: errHelp},
		{name: "wrong password", args: []string{"checkstatus", "-email", "sipho@gmail.com"}, pwd: "nope", wantErr: user.ErrInvalidLogin},
		{name: "pending teacher", args: []string{"checkstatus", "-email", "sipho@gmail.com"}, pwd: "xK9#mPl2qR"},
	}
	runCLITests(t, cli, tests, nil)
}
