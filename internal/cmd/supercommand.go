// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// SuperCommandParams provides the way to have default parameters to the
// NewSuperCommand call.
type SuperCommandParams struct {
	Name    string
	Purpose string
	Doc     string
	Version string
}

// SuperCommand is a Command that selects a subcommand and assumes its
// properties; to Run a SuperCommand is to run its selected subcommand.
type SuperCommand struct {
	CommandBase
	Name    string
	Purpose string
	Doc     string

	version     string
	subcmds     map[string]Command
	flags       *gnuflag.FlagSet
	action      Command
	actionName  string
	showHelp    bool
	showVersion bool
}

// NewSuperCommand creates and initializes a new SuperCommand.
func NewSuperCommand(params SuperCommandParams) *SuperCommand {
	return &SuperCommand{
		Name:    params.Name,
		Purpose: params.Purpose,
		Doc:     params.Doc,
		version: params.Version,
		subcmds: make(map[string]Command),
	}
}

// Register makes a subcommand available for use on the command line.
// The command will be registered under its name and any aliases; a
// duplicate registration panics, since it is a programming error.
func (c *SuperCommand) Register(subcmd Command) {
	info := subcmd.Info()
	c.insert(info.Name, subcmd)
	for _, name := range info.Aliases {
		c.insert(name, subcmd)
	}
}

func (c *SuperCommand) insert(name string, subcmd Command) {
	if _, found := c.subcmds[name]; found {
		panic(fmt.Sprintf("command already registered: %q", name))
	}
	c.subcmds[name] = subcmd
}

// Info returns a description of the currently selected subcommand, or of
// the SuperCommand itself if no subcommand has been specified.
func (c *SuperCommand) Info() *Info {
	if c.action != nil {
		info := *c.action.Info()
		info.Name = fmt.Sprintf("%s %s", c.Name, info.Name)
		return &info
	}
	return &Info{
		Name:    c.Name,
		Args:    "<command> ...",
		Purpose: c.Purpose,
		Doc:     strings.TrimSpace(c.Doc) + "\n\n" + c.describeCommands(),
	}
}

func (c *SuperCommand) describeCommands() string {
	names := make([]string, 0, len(c.subcmds))
	longest := 0
	for name := range c.subcmds {
		if len(name) > longest {
			longest = len(name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, name := range names {
		purpose := c.subcmds[name].Info().Purpose
		fmt.Fprintf(&sb, "    %-*s  %s\n", longest, name, purpose)
	}
	return sb.String()
}

// SetFlags adds the flags valid before the subcommand is chosen.
func (c *SuperCommand) SetFlags(f *gnuflag.FlagSet) {
	f.BoolVar(&c.showHelp, "h", false, "Show help on a command or other topic")
	f.BoolVar(&c.showHelp, "help", false, "")
	if c.version != "" {
		f.BoolVar(&c.showVersion, "version", false, "Show the version of "+c.Name)
	}
}

// Init initializes the command for running: the first positional argument
// selects the subcommand, and the rest are handed down to it.
func (c *SuperCommand) Init(args []string) error {
	if len(args) == 0 {
		c.showHelp = true
		return nil
	}
	name := args[0]
	if name == "help" {
		c.showHelp = true
		args = args[1:]
		if len(args) == 0 {
			return nil
		}
		name = args[0]
	}
	subcmd, found := c.subcmds[name]
	if !found {
		return errors.Errorf("unrecognized command: %s %s", c.Name, name)
	}
	c.action = subcmd
	c.actionName = name
	if c.showHelp {
		return nil
	}
	f := NewFlagSet(name)
	c.action.SetFlags(f)
	if err := f.Parse(true, args[1:]); err != nil {
		return errors.Trace(err)
	}
	return c.action.Init(f.Args())
}

// Run executes the selected subcommand, or prints help.
func (c *SuperCommand) Run(ctx *Context) error {
	if c.showVersion {
		fmt.Fprintln(ctx.Stdout, c.version)
		return nil
	}
	if c.showHelp {
		target := Command(c)
		name := c.Name
		if c.action != nil {
			target = c.action
			name = c.actionName
		}
		f := NewFlagSet(name)
		target.SetFlags(f)
		_, err := ctx.Stdout.Write(c.Info().Help(f))
		return err
	}
	if c.action == nil {
		return errors.New("no command specified")
	}
	return c.action.Run(ctx)
}

// Main parses args (excluding the program name) and runs the command in
// the given context, translating the result into a process exit code.
// Run errors are printed to the context's stderr.
func Main(c Command, ctx *Context, args []string) int {
	f := NewFlagSet(c.Info().Name)
	c.SetFlags(f)
	if err := f.Parse(true, args); err != nil {
		fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
		return 2
	}
	if err := c.Init(f.Args()); err != nil {
		fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
		return 2
	}
	if err := c.Run(ctx); err != nil {
		fmt.Fprintf(ctx.Stderr, "ERROR %v\n", errors.Cause(err))
		return 1
	}
	return 0
}
