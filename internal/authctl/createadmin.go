// Package authctl implements the operator commands of the auth server.
package authctl

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/deliveroo/internal/flagx"
	"github.com/dmitrijs2005/deliveroo/internal/server/models"
	"github.com/dmitrijs2005/deliveroo/internal/server/services"
)

// AdminCreator is the slice of the auth service create-admin needs.
type AdminCreator interface {
	CreateAdmin(ctx context.Context, in services.CreateAdminInput) (*models.User, error)
}

var (
	ErrEmptyField       = errors.New("value must not be empty")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// parseAdminFlags reads -email, -username, -first-name and -second-name.
// Other arguments, such as server config flags, are ignored.
func parseAdminFlags(args []string) (services.CreateAdminInput, error) {
	var in services.CreateAdminInput

	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&in.Email, "email", "", "admin email")
	fs.StringVar(&in.Username, "username", "", "admin username")
	fs.StringVar(&in.FirstName, "first-name", "", "first name")
	fs.StringVar(&in.SecondName, "second-name", "", "second name")

	if err := fs.Parse(flagx.FilterArgs(args, flagx.Names(fs))); err != nil {
		return in, fmt.Errorf("parse flags: %w", err)
	}
	return in, nil
}

func prompt(reader *bufio.Reader, w io.Writer, dst *string, label string) error {
	if *dst != "" {
		return nil
	}
	v, err := GetSimpleText(reader, label, w)
	if err != nil {
		return err
	}
	if v == "" {
		return fmt.Errorf("%s: %w", label, ErrEmptyField)
	}
	*dst = v
	return nil
}

// CreateAdmin collects the admin details from args, falling back to prompts,
// asks for the password twice and creates the account.
func CreateAdmin(ctx context.Context, svc AdminCreator, args []string, stdin io.Reader, w io.Writer) error {
	in, err := parseAdminFlags(args)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(stdin)
	for _, f := range []struct {
		dst   *string
		label string
	}{
		{&in.Email, "Email"},
		{&in.Username, "Username"},
		{&in.FirstName, "First name"},
		{&in.SecondName, "Second name"},
	} {
		if err := prompt(reader, w, f.dst, f.label); err != nil {
			return err
		}
	}

	password, err := GetPassword(w, "Password")
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password: %w", ErrEmptyField)
	}
	confirm, err := GetPassword(w, "Repeat password")
	if err != nil {
		return err
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	in.Password = password

	u, err := svc.CreateAdmin(ctx, in)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Fprintf(w, "Admin %s created (id %s)\n", u.Username, u.ID)
	return nil
}
