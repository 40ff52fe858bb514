// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// Info holds everything necessary to describe a Command's intent and usage.
type Info struct {
	// Name is the Command's name.
	Name string

	// Args describes the format of a valid call to the Command.
	Args string

	// Purpose is a short explanation of the Command's purpose.
	Purpose string

	// Doc is the long documentation for the Command.
	Doc string

	// Aliases are other names for the Command.
	Aliases []string
}

// Help renders i's content for the help command.
func (i *Info) Help(f *gnuflag.FlagSet) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s", i.Name)
	hasOptions := false
	f.VisitAll(func(f *gnuflag.Flag) { hasOptions = true })
	if hasOptions {
		sb.WriteString(" [options]")
	}
	if i.Args != "" {
		fmt.Fprintf(&sb, " %s", i.Args)
	}
	sb.WriteString("\n")
	if i.Purpose != "" {
		fmt.Fprintf(&sb, "\nSummary:\n%s\n", i.Purpose)
	}
	if hasOptions {
		sb.WriteString("\nOptions:\n")
		f.SetOutput(&sb)
		f.PrintDefaults()
		f.SetOutput(io.Discard)
	}
	if doc := strings.TrimSpace(i.Doc); doc != "" {
		fmt.Fprintf(&sb, "\nDetails:\n%s\n", doc)
	}
	return []byte(sb.String())
}

// Command is implemented by types that interpret command-line arguments.
type Command interface {
	// Info returns information about the Command.
	Info() *Info

	// SetFlags adds command specific flags to the flag set.
	SetFlags(f *gnuflag.FlagSet)

	// Init initializes the Command before running.
	Init(args []string) error

	// Run will execute the Command as directed by the options and
	// positional arguments given to Init.
	Run(ctx *Context) error
}

// CommandBase provides a default no-op SetFlags implementation.
type CommandBase struct{}

// SetFlags does nothing in the simplest case.
func (c *CommandBase) SetFlags(f *gnuflag.FlagSet) {}

// Init checks that there are no unconsumed arguments.
func (c *CommandBase) Init(args []string) error {
	return CheckEmpty(args)
}

// Context represents the run context of a Command.
type Context struct {
	ctx    context.Context
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Context returns the command's programmatic context.
func (ctx *Context) Context() context.Context {
	if ctx.ctx == nil {
		return context.Background()
	}
	return ctx.ctx
}

// With returns a context with the given std context.
func (ctx *Context) With(c context.Context) *Context {
	newCtx := *ctx
	newCtx.ctx = c
	return &newCtx
}

// AbsPath returns an absolute representation of path, with relative paths
// interpreted as relative to ctx.Dir.
func (ctx *Context) AbsPath(path string) string {
	if path == "-" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ctx.Dir, path)
}

// Infof prints the formatted message to the context's stderr, which is
// where progress information belongs; stdout carries command output only.
func (ctx *Context) Infof(format string, params ...interface{}) {
	fmt.Fprintf(ctx.Stderr, format+"\n", params...)
}

// Warningf prints the formatted warning to the context's stderr.
func (ctx *Context) Warningf(format string, params ...interface{}) {
	fmt.Fprintf(ctx.Stderr, "WARNING "+format+"\n", params...)
}

// DefaultContext returns a Context suitable for use in non-hosted situations.
func DefaultContext(stdCtx context.Context, dir string, stdin io.Reader, stdout, stderr io.Writer) (*Context, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Context{
		ctx:    stdCtx,
		Dir:    abs,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, nil
}

// CheckEmpty is a utility function that returns an error if args is not empty.
func CheckEmpty(args []string) error {
	if len(args) != 0 {
		return errors.Errorf("unrecognized args: %q", args)
	}
	return nil
}

// ZeroOrOneArgs checks to see that there are zero or one args, and returns
// the value of the arg if provided, or the empty string if not.
func ZeroOrOneArgs(args []string) (string, error) {
	var arg string
	switch len(args) {
	case 0:
	case 1:
		arg = args[0]
	default:
		return "", errors.Errorf("unrecognized args: %q", args[1:])
	}
	return arg, nil
}

// NewFlagSet returns a flag set initialised the way commands here expect:
// errors are returned, not printed, and interspersed flags are allowed.
func NewFlagSet(name string) *gnuflag.FlagSet {
	f := gnuflag.NewFlagSetWithFlagKnownAs(name, gnuflag.ContinueOnError, "option")
	f.SetOutput(io.Discard)
	return f
}
