// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/labspec"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/rbac"
)

type createRoleCommand struct {
	azureCommand
	roleName    string
	description string
	actions     string
	notActions  string
}

func (c *createRoleCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "create-role",
		Args:    "<role-name>",
		Purpose: "Create or update a custom role at subscription scope",
		Doc: `
A role that already exists with the same display name is updated in
place, keeping its identifier, so repeated runs converge.

Example:

    az104 create-role "Lab Reader Plus" \
        --actions "Microsoft.Resources/subscriptions/resourceGroups/read,Microsoft.Compute/virtualMachines/read" \
        --not-actions "Microsoft.Compute/virtualMachines/delete"
`,
	}
}

func (c *createRoleCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.StringVar(&c.description, "description", "", "Role description")
	f.StringVar(&c.actions, "actions", "", "Comma-separated allowed actions")
	f.StringVar(&c.notActions, "not-actions", "", "Comma-separated excluded actions")
}

func (c *createRoleCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no role name specified")
	}
	c.roleName = args[0]
	if c.actions == "" {
		return errors.New("--actions is required")
	}
	return cmd.CheckEmpty(args[1:])
}

func (c *createRoleCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	spec := &labspec.RoleSpec{
		Name:        c.roleName,
		Description: c.description,
		Actions:     splitList(c.actions),
		NotActions:  splitList(c.notActions),
	}
	definitionID, err := rbac.NewManager(clients).EnsureCustomRole(ctx.Context(), spec)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintln(ctx.Stdout, definitionID)
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

type listRolesCommand struct {
	azureCommand
	out cmd.Output
	all bool
}

func (c *listRolesCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "list-roles",
		Purpose: "List role definitions at subscription scope",
	}
}

func (c *listRolesCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.BoolVar(&c.all, "all", false, "Include built-in roles, not just custom ones")
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatRolesTabular,
	})
}

func (c *listRolesCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	roles, err := rbac.NewManager(clients).ListRoles(ctx.Context(), !c.all)
	if err != nil {
		return errors.Trace(err)
	}
	return c.out.Write(ctx, roles)
}

func formatRolesTabular(writer io.Writer, value interface{}) error {
	roles, ok := value.([]rbac.Role)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", roles, value)
	}
	tw := cmd.TabWriter(writer)
	fmt.Fprintln(tw, "ROLE\tTYPE\tDESCRIPTION")
	for _, role := range roles {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", role.RoleName, role.RoleType, role.Description)
	}
	return tw.Flush()
}

type deleteRoleCommand struct {
	azureCommand
	roleName  string
	assumeYes bool
}

func (c *deleteRoleCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "delete-role",
		Args:    "<role-name>",
		Purpose: "Delete a custom role definition",
		Doc: `
Built-in roles cannot be deleted, and deletion is refused while role
assignments still reference the definition.
`,
	}
}

func (c *deleteRoleCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.BoolVar(&c.assumeYes, "y", false, "Do not ask for confirmation")
	f.BoolVar(&c.assumeYes, "yes", false, "")
}

func (c *deleteRoleCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no role name specified")
	}
	c.roleName = args[0]
	return cmd.CheckEmpty(args[1:])
}

func (c *deleteRoleCommand) Run(ctx *cmd.Context) error {
	if !c.assumeYes {
		if err := cmd.Confirm(ctx, fmt.Sprintf("Delete custom role %q?", c.roleName)); err != nil {
			return errors.Trace(err)
		}
	}
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(rbac.NewManager(clients).DeleteCustomRole(ctx.Context(), c.roleName))
}

type assignRoleCommand struct {
	azureCommand
	roleName      string
	principalID   string
	principalType string
	group         string
}

func (c *assignRoleCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "assign-role",
		Args:    "<role-name> <principal-object-id>",
		Purpose: "Assign a role to a principal",
		Doc: `
The assignment is made at subscription scope, or at one resource group
with --group. Assigning a role a principal already holds is a no-op.
`,
	}
}

func (c *assignRoleCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.StringVar(&c.principalType, "type", "User", "Principal type (User|Group|ServicePrincipal)")
	f.StringVar(&c.group, "group", "", "Assign at this resource group instead of the subscription")
}

func (c *assignRoleCommand) Init(args []string) error {
	if len(args) < 2 {
		return errors.New("role name and principal object ID required")
	}
	c.roleName, c.principalID = args[0], args[1]
	for _, known := range armauthorization.PossiblePrincipalTypeValues() {
		if string(known) == c.principalType {
			return cmd.CheckEmpty(args[2:])
		}
	}
	return errors.NotValidf("principal type %q", c.principalType)
}

func (c *assignRoleCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	manager := rbac.NewManager(clients)
	scope := manager.SubscriptionScope()
	if c.group != "" {
		scope = manager.GroupScope(c.group)
	}
	return errors.Trace(manager.CreateAssignment(ctx.Context(), rbac.AssignmentParams{
		PrincipalID:   c.principalID,
		PrincipalType: armauthorization.PrincipalType(c.principalType),
		RoleName:      c.roleName,
		Scope:         scope,
	}))
}
