package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/user"
)

// addAdmin creates (or reuses) a credential and grants it an accepted
// admin role assignment. This is the bootstrap path for the first admin.
func (cli *commandLine) addAdmin(email, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
		})
		if err != nil {
			return err
		}
	}

	acct, err := cli.enrollSvc.GetAccount(ctx, usr.ID)
	if err != nil {
		return err
	}
	for _, ra := range acct.Roles {
		if ra.Role == enrollment.RoleAdmin && ra.Status == enrollment.StatusAccepted {
			std.Printf("%s is already an admin\n", email)
			return nil
		}
	}

	if _, err = cli.enrollRepo.CreateRoleAssignment(ctx, enrollment.RoleAssignment{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		Role:      enrollment.RoleAdmin,
		Status:    enrollment.StatusAccepted,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	std.Printf("admin %s created\n", email)
	return nil
}
