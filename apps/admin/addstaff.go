package main

import (
	"context"
	"fmt"

	"github.com/playlms/backend/core/user"
)

// addStaff creates an active staff account.
func (cli *commandLine) addStaff(name, uname, email, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}

	usr, err := cli.usrSvc.CreateStaff(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Printf("staff account %q created\n", usr.Username)
	return nil
}
