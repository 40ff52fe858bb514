// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/rbac"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/report"
)

var auditDoc = `
Audit-rbac reports every role assignment visible at the subscription, at
one resource group with --group, or at an arbitrary ARM scope (for
example a single storage account) with --scope. Each assignment is
joined with its role definition and with the directory identity of its
principal; assignments whose principal no longer exists are flagged as
orphaned.

A summary tallies assignments by role, principal type and scope level.
`

type auditCommand struct {
	azureCommand
	out     cmd.Output
	scope   string
	group   string
	csvPath string
}

func (c *auditCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "audit-rbac",
		Purpose: "Report role assignments joined with roles and principals",
		Doc:     auditDoc,
	}
}

func (c *auditCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.StringVar(&c.scope, "scope", "", "Audit an explicit ARM scope (overrides --group)")
	f.StringVar(&c.group, "group", "", "Audit one resource group instead of the subscription")
	f.StringVar(&c.csvPath, "csv", "", "Write the assignment rows to a CSV file")
	c.out.AddFlags(f, "yaml", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatAuditTabular,
	})
}

func (c *auditCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	manager := rbac.NewManager(clients)
	audit, err := manager.Audit(ctx.Context(), c.auditScope(manager))
	if err != nil {
		return errors.Trace(err)
	}
	if c.csvPath != "" {
		header, rows := report.AssignmentCSV(audit)
		path := ctx.AbsPath(c.csvPath)
		if err := report.WriteCSVFile(path, header, rows); err != nil {
			return errors.Trace(err)
		}
		ctx.Infof("wrote %d assignment(s) to %s", len(rows), path)
		return nil
	}
	return c.out.Write(ctx, audit)
}

// auditScope picks the scope to audit: an explicit --scope wins, then
// --group, then the whole subscription.
func (c *auditCommand) auditScope(manager *rbac.Manager) string {
	if c.scope != "" {
		return c.scope
	}
	if c.group != "" {
		return manager.GroupScope(c.group)
	}
	return manager.SubscriptionScope()
}

func formatAuditTabular(writer io.Writer, value interface{}) error {
	audit, ok := value.(*rbac.Report)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", audit, value)
	}
	tw := cmd.TabWriter(writer)
	fmt.Fprintln(tw, "PRINCIPAL\tTYPE\tROLE\tROLE-TYPE\tSCOPE-LEVEL\tORPHANED")
	for _, row := range audit.Rows {
		orphaned := ""
		if row.Orphaned {
			orphaned = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Principal, row.PrincipalType, row.Role, row.RoleType,
			row.ScopeLevel, orphaned)
	}
	fmt.Fprintf(tw, "\nTotal: %d, custom roles: %d, orphaned: %d\n",
		audit.Summary.Total, audit.Summary.CustomRoles, audit.Summary.Orphaned)
	return tw.Flush()
}
