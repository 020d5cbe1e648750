package main

import (
	"context"
	"fmt"

	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/session"
)

// checkStatus signs in through the session context and prints where the
// user currently stands: pending review, rejected, or accepted with a
// dashboard.
func (cli *commandLine) checkStatus(email, pwd string) error {
	ctx := context.Background()

	sess := session.NewContext(cli.usrSvc, cli.enrollSvc, cli.logger, nil)
	defer sess.Close()

	if err := sess.SignIn(ctx, email, pwd); err != nil {
		return err
	}
	if err := sess.RefreshProfile(ctx); err != nil {
		return err
	}

	snap := sess.Snapshot()
	if len(snap.Roles) == 0 {
		fmt.Printf("%s has no role applications\n", email)
		return nil
	}

	for _, ra := range snap.Roles {
		fmt.Printf("%-12s %s\n", ra.Role, ra.Status)
	}
	if snap.IsAccepted {
		fmt.Printf("accepted: dashboard %s\n", enrollment.RolePaths[snap.PrimaryRole])
	} else {
		fmt.Println("not accepted yet: application under review")
	}
	return nil
}
