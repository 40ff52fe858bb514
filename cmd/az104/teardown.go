// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
)

var teardownDoc = `
Teardown deletes the resource groups of the named labs, or of every lab
in the subscription with --all. Labs are found by the marker tag stamped
at provisioning time, so only groups this tool created are candidates.

Deletions of multiple groups run concurrently; the command waits for
all of them to finish.
`

type teardownCommand struct {
	azureCommand
	labs      []string
	all       bool
	assumeYes bool
}

func (c *teardownCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "teardown",
		Args:    "[<lab-name> ...]",
		Purpose: "Delete practice labs and everything in them",
		Doc:     teardownDoc,
	}
}

func (c *teardownCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.BoolVar(&c.all, "all", false, "Tear down every lab in the subscription")
	f.BoolVar(&c.assumeYes, "y", false, "Do not ask for confirmation")
	f.BoolVar(&c.assumeYes, "yes", false, "")
}

func (c *teardownCommand) Init(args []string) error {
	if len(args) == 0 && !c.all {
		return errors.New("specify lab names or --all")
	}
	if len(args) > 0 && c.all {
		return errors.New("cannot mix lab names with --all")
	}
	c.labs = args
	return nil
}

func (c *teardownCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	provisioner := provision.NewProvisioner(clients)
	stdCtx := ctx.Context()

	groups, err := provisioner.ListLabGroups(stdCtx)
	if err != nil {
		return errors.Trace(err)
	}
	wanted := set.NewStrings(c.labs...)
	var targets []provision.Group
	for _, group := range groups {
		if c.all || wanted.Contains(group.Lab) {
			targets = append(targets, group)
			wanted.Remove(group.Lab)
		}
	}
	if !wanted.IsEmpty() {
		return errors.NotFoundf("labs %s", strings.Join(wanted.SortedValues(), ", "))
	}
	if len(targets) == 0 {
		ctx.Infof("no labs to tear down")
		return nil
	}
	names := make([]string, len(targets))
	for i, group := range targets {
		names[i] = group.Name
	}
	if !c.assumeYes {
		if err := cmd.Confirm(ctx, fmt.Sprintf(
			"Delete resource group(s) %s and everything in them?",
			strings.Join(names, ", "))); err != nil {
			return errors.Trace(err)
		}
	}
	deletions := make([]*provision.GroupDeletion, 0, len(targets))
	for _, group := range targets {
		deletion, err := provisioner.BeginDeleteGroup(stdCtx, group.Name)
		if err != nil {
			return errors.Trace(err)
		}
		deletions = append(deletions, deletion)
	}
	for _, deletion := range deletions {
		if err := deletion.Wait(stdCtx); err != nil {
			return errors.Trace(err)
		}
		ctx.Infof("deleted %s", deletion.Name)
	}
	return nil
}
