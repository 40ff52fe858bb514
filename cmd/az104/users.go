// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/directory"
)

type addUserCommand struct {
	azureCommand
	displayName string
	userDomain  string
}

func (c *addUserCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "add-user",
		Args:    "<display-name>",
		Purpose: "Create a practice user in the directory",
		Doc: `
The user is created enabled, with a generated password that must be
changed at first sign-in. The password is printed once and not stored.
`,
	}
}

func (c *addUserCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.StringVar(&c.userDomain, "domain", "", "UPN domain (defaults to $AZ104_USER_DOMAIN)")
}

func (c *addUserCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no display name specified")
	}
	c.displayName = args[0]
	return cmd.CheckEmpty(args[1:])
}

func (c *addUserCommand) Run(ctx *cmd.Context) error {
	domain := c.userDomain
	if domain == "" {
		domain = firstEnv("AZ104_USER_DOMAIN")
	}
	if domain == "" {
		return errors.New("no domain specified, use --domain or set AZ104_USER_DOMAIN")
	}
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	user, initialPassword, err := directory.NewManager(clients).CreateUser(ctx.Context(), c.displayName, domain)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(ctx.Stdout, "%s initial password: %s\n", user.UPN, initialPassword)
	return nil
}

type listUsersCommand struct {
	azureCommand
	out    cmd.Output
	prefix string
}

func (c *listUsersCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "list-users",
		Purpose: "List directory users",
	}
}

func (c *listUsersCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.StringVar(&c.prefix, "prefix", "", "List only users whose UPN starts with this prefix")
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatUsersTabular,
	})
}

func (c *listUsersCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	users, err := directory.NewManager(clients).ListUsers(ctx.Context(), c.prefix)
	if err != nil {
		return errors.Trace(err)
	}
	return c.out.Write(ctx, users)
}

func formatUsersTabular(writer io.Writer, value interface{}) error {
	users, ok := value.([]directory.User)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", users, value)
	}
	tw := cmd.TabWriter(writer)
	fmt.Fprintln(tw, "UPN\tDISPLAY-NAME\tENABLED\tID")
	for _, user := range users {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", user.UPN, user.DisplayName, user.Enabled, user.ID)
	}
	return tw.Flush()
}

type removeUserCommand struct {
	azureCommand
	id        string
	assumeYes bool
}

func (c *removeUserCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "remove-user",
		Args:    "<upn-or-object-id>",
		Purpose: "Delete a directory user",
	}
}

func (c *removeUserCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.BoolVar(&c.assumeYes, "y", false, "Do not ask for confirmation")
	f.BoolVar(&c.assumeYes, "yes", false, "")
}

func (c *removeUserCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no user specified")
	}
	c.id = args[0]
	return cmd.CheckEmpty(args[1:])
}

func (c *removeUserCommand) Run(ctx *cmd.Context) error {
	if !c.assumeYes {
		if err := cmd.Confirm(ctx, fmt.Sprintf("Delete user %q?", c.id)); err != nil {
			return errors.Trace(err)
		}
	}
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(directory.NewManager(clients).DeleteUser(ctx.Context(), c.id))
}
