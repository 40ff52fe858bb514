// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/rightsize"
)

var rightsizeDoc = `
Rightsize inspects the CPU utilization of every VM in a resource group
over the lookback window and recommends a size for each: idle and
underutilized machines are moved down the size ladder, saturated ones
up. Average available memory is reported alongside but does not move
the verdict. A VM with no metric data keeps its size; absence of data
is not treated as idleness.
`

type rightsizeCommand struct {
	azureCommand
	out    cmd.Output
	group  string
	window time.Duration
}

func (c *rightsizeCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "rightsize",
		Purpose: "Recommend VM sizes from utilization metrics",
		Doc:     rightsizeDoc,
	}
}

func (c *rightsizeCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.StringVar(&c.group, "group", "", "Resource group whose VMs to analyze")
	f.DurationVar(&c.window, "window", 7*24*time.Hour, "Lookback window for utilization metrics")
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatRecommendationsTabular,
	})
}

func (c *rightsizeCommand) Init(args []string) error {
	if c.group == "" {
		return errors.New("--group is required")
	}
	if c.window <= 0 {
		return errors.NotValidf("window %s", c.window)
	}
	return cmd.CheckEmpty(args)
}

func (c *rightsizeCommand) Run(ctx *cmd.Context) error {
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	stdCtx := ctx.Context()
	vms, err := provision.NewProvisioner(clients).ListVMs(stdCtx, c.group)
	if err != nil {
		return errors.Trace(err)
	}
	recommendations := rightsize.NewAnalyzer(clients).AnalyzeGroup(stdCtx, vms, c.window)
	return c.out.Write(ctx, recommendations)
}

func formatRecommendationsTabular(writer io.Writer, value interface{}) error {
	recommendations, ok := value.([]rightsize.Recommendation)
	if !ok {
		return errors.Errorf("expected value of type %T, got %T", recommendations, value)
	}
	tw := cmd.TabWriter(writer)
	fmt.Fprintln(tw, "VM\tSIZE\tAVG-CPU\tP95-CPU\tAVAIL-MEM-MB\tACTION\tTARGET\tREASON")
	for _, rec := range recommendations {
		avg, p95, mem := "-", "-", "-"
		if rec.HasData {
			avg = fmt.Sprintf("%.2f", rec.AvgCPU)
			p95 = fmt.Sprintf("%.2f", rec.P95CPU)
		}
		if rec.AvgMemAvailableMB > 0 {
			mem = fmt.Sprintf("%.0f", rec.AvgMemAvailableMB)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.VM, rec.CurrentSize, avg, p95, mem, rec.Action, rec.TargetSize, rec.Reason)
	}
	return tw.Flush()
}
