package main

import (
	"context"
	"time"

	"github.com/kagisom/imfundo/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.userRepo.UpdateUser(ctx, user.User{
		ID:           usr.ID,
		PasswordHash: usr.PasswordHash,
		UpdatedAt:    time.Now().UTC(),
	}, nil); err != nil {
		return err
	}
	std.Printf("password updated for %s\n", email)
	return nil
}
