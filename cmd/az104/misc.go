// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
)

type logsCommand struct {
	azureCommand
	group          string
	containerGroup string
	container      string
	tail           int
}

func (c *logsCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "logs",
		Args:    "<group> <container-group> [<container>]",
		Purpose: "Fetch the logs of a container instance",
		Doc: `
The container name defaults to the container group name, which is how
this tool provisions single-container groups.
`,
	}
}

func (c *logsCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.IntVar(&c.tail, "tail", 0, "Show only the last N lines (0 for all)")
}

func (c *logsCommand) Init(args []string) error {
	if len(args) < 2 {
		return errors.New("resource group and container group required")
	}
	c.group, c.containerGroup = args[0], args[1]
	c.container = c.containerGroup
	if len(args) > 2 {
		c.container = args[2]
		return cmd.CheckEmpty(args[3:])
	}
	return nil
}

func (c *logsCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	content, err := provision.NewProvisioner(clients).ContainerLogs(
		ctx.Context(), c.group, c.containerGroup, c.container, c.tail)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprint(ctx.Stdout, content)
	return nil
}

type keysCommand struct {
	azureCommand
	group   string
	account string
}

func (c *keysCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "keys",
		Args:    "<group> <storage-account>",
		Purpose: "Print the access keys of a storage account",
	}
}

func (c *keysCommand) Init(args []string) error {
	if len(args) < 2 {
		return errors.New("resource group and storage account required")
	}
	c.group, c.account = args[0], args[1]
	return cmd.CheckEmpty(args[2:])
}

func (c *keysCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	keys, err := provision.NewProvisioner(clients).StorageAccountKeys(ctx.Context(), c.group, c.account)
	if err != nil {
		return errors.Trace(err)
	}
	for _, key := range keys {
		fmt.Fprintln(ctx.Stdout, key)
	}
	return nil
}

type tagCommand struct {
	azureCommand
	group string
	tags  map[string]string
}

func (c *tagCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "tag",
		Args:    "<group> <key>=<value> ...",
		Purpose: "Merge tags into a resource group",
	}
}

func (c *tagCommand) Init(args []string) error {
	if len(args) < 2 {
		return errors.New("resource group and at least one key=value pair required")
	}
	c.group = args[0]
	c.tags = make(map[string]string)
	for _, arg := range args[1:] {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return errors.NotValidf("tag %q", arg)
		}
		c.tags[key] = value
	}
	return nil
}

func (c *tagCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	if err := provision.NewProvisioner(clients).UpdateGroupTags(ctx.Context(), c.group, c.tags); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("tagged %s", c.group)
	return nil
}

type locationsCommand struct {
	azureCommand
	out cmd.Output
}

func (c *locationsCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "locations",
		Purpose: "List the regions available to the subscription",
	}
}

func (c *locationsCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	c.out.AddFlags(f, "smart", cmd.DefaultFormatters)
}

func (c *locationsCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	locations, err := provision.NewProvisioner(clients).Locations(ctx.Context())
	if err != nil {
		return errors.Trace(err)
	}
	return c.out.Write(ctx, locations)
}
