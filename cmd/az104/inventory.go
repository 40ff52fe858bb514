// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/report"
)

type groupsCommand struct {
	azureCommand
	out cmd.Output
	all bool
}

func (c *groupsCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "groups",
		Purpose: "List lab resource groups",
	}
}

func (c *groupsCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.BoolVar(&c.all, "all", false, "Include resource groups not created by this tool")
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatGroupsTabular,
	})
}

func (c *groupsCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	provisioner := provision.NewProvisioner(clients)
	var groups []provision.Group
	if c.all {
		groups, err = provisioner.ListGroups(ctx.Context())
	} else {
		groups, err = provisioner.ListLabGroups(ctx.Context())
	}
	if err != nil {
		return errors.Trace(err)
	}
	return c.out.Write(ctx, groups)
}

func formatGroupsTabular(writer io.Writer, value interface{}) error {
	groups, ok := value.([]provision.Group)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", groups, value)
	}
	tw := cmd.TabWriter(writer)
	fmt.Fprintln(tw, "NAME\tLOCATION\tLAB")
	for _, group := range groups {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", group.Name, group.Location, group.Lab)
	}
	return tw.Flush()
}

var inventoryDoc = `
Inventory lists every resource in the selected resource groups, noting
which of the required tags each resource lacks. Without --group, every
lab group in the subscription is included.

The report can be written as yaml, json, a table, or exported to a CSV
file with --csv.
`

type inventoryCommand struct {
	azureCommand
	out         cmd.Output
	group       string
	requireTags string
	csvPath     string
}

func (c *inventoryCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "inventory",
		Purpose: "List lab resources and audit their tags",
		Doc:     inventoryDoc,
	}
}

func (c *inventoryCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.StringVar(&c.group, "group", "", "Limit the inventory to one resource group")
	f.StringVar(&c.requireTags, "require-tags", "", "Comma-separated tag keys every resource must carry")
	f.StringVar(&c.csvPath, "csv", "", "Write the inventory to a CSV file")
	c.out.AddFlags(f, "yaml", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatInventoryTabular,
	})
}

func (c *inventoryCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	provisioner := provision.NewProvisioner(clients)
	stdCtx := ctx.Context()

	var groupNames []string
	if c.group != "" {
		groupNames = []string{c.group}
	} else {
		groups, err := provisioner.ListLabGroups(stdCtx)
		if err != nil {
			return errors.Trace(err)
		}
		for _, group := range groups {
			groupNames = append(groupNames, group.Name)
		}
	}
	var resources []provision.Resource
	for _, name := range groupNames {
		found, err := provisioner.ListResources(stdCtx, name)
		if err != nil {
			return errors.Trace(err)
		}
		resources = append(resources, found...)
	}
	var required []string
	for _, key := range strings.Split(c.requireTags, ",") {
		if key = strings.TrimSpace(key); key != "" {
			required = append(required, key)
		}
	}
	inventory := report.BuildInventory(clients.SubscriptionID(), resources, required)
	if c.csvPath != "" {
		header, rows := report.InventoryCSV(inventory)
		path := ctx.AbsPath(c.csvPath)
		if err := report.WriteCSVFile(path, header, rows); err != nil {
			return errors.Trace(err)
		}
		ctx.Infof("wrote %d resource(s) to %s", len(rows), path)
		return nil
	}
	return c.out.Write(ctx, inventory)
}

func formatInventoryTabular(writer io.Writer, value interface{}) error {
	inventory, ok := value.(*report.Inventory)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", inventory, value)
	}
	tw := cmd.TabWriter(writer)
	fmt.Fprintln(tw, "NAME\tTYPE\tGROUP\tLOCATION\tMISSING-TAGS")
	for _, row := range inventory.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			row.Name, row.Type, row.Group, row.Location,
			strings.Join(row.MissingTags, " "))
	}
	return tw.Flush()
}
