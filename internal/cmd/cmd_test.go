// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd_test

import (
	"bytes"
	"context"
	"os"
	"strings"
	stdtesting "testing"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
)

func Test(t *stdtesting.T) { gc.TestingT(t) }

type cmdSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&cmdSuite{})

func newContext(c *gc.C, stdin string) (*cmd.Context, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	ctx, err := cmd.DefaultContext(context.Background(), c.MkDir(), strings.NewReader(stdin), &stdout, &stderr)
	c.Assert(err, jc.ErrorIsNil)
	return ctx, &stdout, &stderr
}

// echoCommand writes its --value flag to stdout, for exercising the
// supercommand plumbing.
type echoCommand struct {
	cmd.CommandBase
	value string
	fail  bool
}

func (c *echoCommand) Info() *cmd.Info {
	return &cmd.Info{Name: "echo", Purpose: "Echo a value"}
}

func (c *echoCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.value, "value", "hello", "Value to echo")
	f.BoolVar(&c.fail, "fail", false, "Fail instead")
}

func (c *echoCommand) Run(ctx *cmd.Context) error {
	if c.fail {
		return errors.New("echo failed")
	}
	_, err := ctx.Stdout.Write([]byte(c.value + "\n"))
	return err
}

func newSuper() *cmd.SuperCommand {
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "tool",
		Purpose: "Test tool",
		Version: "9.9.9",
	})
	super.Register(&echoCommand{})
	return super
}

func (s *cmdSuite) TestMainRunsSubcommand(c *gc.C) {
	ctx, stdout, _ := newContext(c, "")
	code := cmd.Main(newSuper(), ctx, []string{"echo", "--value", "beep"})
	c.Assert(code, gc.Equals, 0)
	c.Assert(stdout.String(), gc.Equals, "beep\n")
}

func (s *cmdSuite) TestMainSubcommandFlagDefault(c *gc.C) {
	ctx, stdout, _ := newContext(c, "")
	code := cmd.Main(newSuper(), ctx, []string{"echo"})
	c.Assert(code, gc.Equals, 0)
	c.Assert(stdout.String(), gc.Equals, "hello\n")
}

func (s *cmdSuite) TestMainUnknownSubcommand(c *gc.C) {
	ctx, _, stderr := newContext(c, "")
	code := cmd.Main(newSuper(), ctx, []string{"bogus"})
	c.Assert(code, gc.Equals, 2)
	c.Assert(stderr.String(), gc.Equals, "ERROR unrecognized command: tool bogus\n")
}

func (s *cmdSuite) TestMainRunErrorExitsOne(c *gc.C) {
	ctx, _, stderr := newContext(c, "")
	code := cmd.Main(newSuper(), ctx, []string{"echo", "--fail"})
	c.Assert(code, gc.Equals, 1)
	c.Assert(stderr.String(), gc.Equals, "ERROR echo failed\n")
}

func (s *cmdSuite) TestMainVersion(c *gc.C) {
	ctx, stdout, _ := newContext(c, "")
	code := cmd.Main(newSuper(), ctx, []string{"--version"})
	c.Assert(code, gc.Equals, 0)
	c.Assert(stdout.String(), gc.Equals, "9.9.9\n")
}

func (s *cmdSuite) TestMainHelpListsCommands(c *gc.C) {
	ctx, stdout, _ := newContext(c, "")
	code := cmd.Main(newSuper(), ctx, []string{"help"})
	c.Assert(code, gc.Equals, 0)
	c.Assert(stdout.String(), jc.Contains, "echo")
	c.Assert(stdout.String(), jc.Contains, "Echo a value")
}

func (s *cmdSuite) TestMainHelpSubcommand(c *gc.C) {
	ctx, stdout, _ := newContext(c, "")
	code := cmd.Main(newSuper(), ctx, []string{"help", "echo"})
	c.Assert(code, gc.Equals, 0)
	c.Assert(stdout.String(), jc.Contains, "Usage: tool echo")
	c.Assert(stdout.String(), jc.Contains, "--value")
}

func (s *cmdSuite) TestRegisterDuplicatePanics(c *gc.C) {
	super := newSuper()
	c.Assert(func() { super.Register(&echoCommand{}) }, gc.PanicMatches,
		`command already registered: "echo"`)
}

func (s *cmdSuite) TestFormatYaml(c *gc.C) {
	var buf bytes.Buffer
	err := cmd.FormatYaml(&buf, map[string]string{"name": "web-01"})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(buf.String(), gc.Equals, "name: web-01\n")
}

func (s *cmdSuite) TestFormatJson(c *gc.C) {
	var buf bytes.Buffer
	err := cmd.FormatJson(&buf, map[string]string{"name": "web-01"})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(buf.String(), gc.Equals, "{\n  \"name\": \"web-01\"\n}\n")
}

func (s *cmdSuite) TestFormatSmartStrings(c *gc.C) {
	var buf bytes.Buffer
	err := cmd.FormatSmart(&buf, []string{"eastus", "westeurope"})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(buf.String(), gc.Equals, "eastus\nwesteurope\n")
}

func (s *cmdSuite) TestOutputUnknownFormat(c *gc.C) {
	var out cmd.Output
	f := cmd.NewFlagSet("test")
	out.AddFlags(f, "yaml", cmd.DefaultFormatters)
	err := f.Parse(true, []string{"--format", "xml"})
	c.Assert(err, gc.ErrorMatches, `invalid value "xml" for option --format: unknown format "xml"`)
}

func (s *cmdSuite) TestOutputToFile(c *gc.C) {
	var out cmd.Output
	f := cmd.NewFlagSet("test")
	out.AddFlags(f, "yaml", cmd.DefaultFormatters)
	err := f.Parse(true, []string{"-o", "out.yaml"})
	c.Assert(err, jc.ErrorIsNil)

	ctx, stdout, _ := newContext(c, "")
	err = out.Write(ctx, map[string]string{"name": "web-01"})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(stdout.String(), gc.Equals, "")
	content, err := os.ReadFile(ctx.AbsPath("out.yaml"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(content), gc.Equals, "name: web-01\n")
}

func (s *cmdSuite) TestConfirm(c *gc.C) {
	for _, test := range []struct {
		stdin     string
		expectErr string
	}{
		{"y\n", ""},
		{"YES\n", ""},
		{"n\n", "aborted"},
		{"\n", "aborted"},
		{"maybe\n", "aborted"},
	} {
		stdin, expectErr := test.stdin, test.expectErr
		ctx, _, stderr := newContext(c, stdin)
		err := cmd.Confirm(ctx, "Do the thing?")
		if expectErr == "" {
			c.Check(err, jc.ErrorIsNil)
		} else {
			c.Check(err, gc.ErrorMatches, expectErr)
		}
		c.Check(stderr.String(), gc.Equals, "Do the thing? (y/N) ")
	}
}

func (s *cmdSuite) TestConfirmEOFAborts(c *gc.C) {
	ctx, _, _ := newContext(c, "")
	err := cmd.Confirm(ctx, "Do the thing?")
	c.Assert(err, gc.Equals, cmd.ErrAborted)
}
