// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/errors"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
)

type startVMCommand struct {
	azureCommand
	group string
	name  string
}

func (c *startVMCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "start-vm",
		Args:    "<group> <vm-name>",
		Purpose: "Start a stopped or deallocated VM",
	}
}

func (c *startVMCommand) Init(args []string) error {
	if len(args) < 2 {
		return errors.New("resource group and VM name required")
	}
	c.group, c.name = args[0], args[1]
	return cmd.CheckEmpty(args[2:])
}

func (c *startVMCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(provision.NewProvisioner(clients).StartVM(ctx.Context(), c.group, c.name))
}

type stopVMCommand struct {
	azureCommand
	group string
	name  string
}

func (c *stopVMCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "stop-vm",
		Args:    "<group> <vm-name>",
		Purpose: "Deallocate a VM so it stops accruing compute charges",
	}
}

func (c *stopVMCommand) Init(args []string) error {
	if len(args) < 2 {
		return errors.New("resource group and VM name required")
	}
	c.group, c.name = args[0], args[1]
	return cmd.CheckEmpty(args[2:])
}

func (c *stopVMCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(provision.NewProvisioner(clients).DeallocateVM(ctx.Context(), c.group, c.name))
}
