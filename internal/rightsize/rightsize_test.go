// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package rightsize_test

import (
	stdtesting "testing"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/rightsize"
)

func Test(t *stdtesting.T) { gc.TestingT(t) }

type rightsizeSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&rightsizeSuite{})

func flat(value float64, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = value
	}
	return samples
}

func (s *rightsizeSuite) TestNoData(c *gc.C) {
	rec := rightsize.Recommend("web-01", "Standard_B2s", nil)
	c.Assert(rec, jc.DeepEquals, rightsize.Recommendation{
		VM:          "web-01",
		CurrentSize: "Standard_B2s",
		Action:      rightsize.ActionKeep,
		TargetSize:  "Standard_B2s",
		Reason:      "no data",
	})
}

func (s *rightsizeSuite) TestIdleDropsTwoTiers(c *gc.C) {
	rec := rightsize.Recommend("web-01", "Standard_D2s_v3", flat(2, 100))
	c.Assert(rec.Action, gc.Equals, rightsize.ActionDownsize)
	c.Assert(rec.TargetSize, gc.Equals, "Standard_B1s")
	c.Assert(rec.Reason, gc.Equals, "idle")
	c.Assert(rec.HasData, jc.IsTrue)
}

func (s *rightsizeSuite) TestUnderutilizedDropsOneTier(c *gc.C) {
	rec := rightsize.Recommend("web-01", "Standard_D2s_v3", flat(15, 100))
	c.Assert(rec.Action, gc.Equals, rightsize.ActionDownsize)
	c.Assert(rec.TargetSize, gc.Equals, "Standard_B2s")
	c.Assert(rec.Reason, gc.Equals, "underutilized")
}

func (s *rightsizeSuite) TestSaturatedAverageMovesUp(c *gc.C) {
	rec := rightsize.Recommend("web-01", "Standard_B2s", flat(80, 100))
	c.Assert(rec.Action, gc.Equals, rightsize.ActionUpsize)
	c.Assert(rec.TargetSize, gc.Equals, "Standard_D2s_v3")
	c.Assert(rec.Reason, gc.Equals, "saturated")
}

func (s *rightsizeSuite) TestSaturatedP95MovesUp(c *gc.C) {
	// Mostly quiet, but the 95th percentile breaches 90%.
	samples := flat(50, 90)
	samples = append(samples, flat(99, 10)...)
	rec := rightsize.Recommend("web-01", "Standard_B2s", samples)
	c.Assert(rec.Action, gc.Equals, rightsize.ActionUpsize)
	c.Assert(rec.Reason, gc.Equals, "saturated")
}

func (s *rightsizeSuite) TestWithinRangeKeeps(c *gc.C) {
	rec := rightsize.Recommend("web-01", "Standard_B2s", flat(50, 100))
	c.Assert(rec.Action, gc.Equals, rightsize.ActionKeep)
	c.Assert(rec.TargetSize, gc.Equals, "Standard_B2s")
	c.Assert(rec.Reason, gc.Equals, "within range")
}

func (s *rightsizeSuite) TestThresholdBoundariesAreExclusive(c *gc.C) {
	// Exactly 5% average is not idle, and exactly 75% is not saturated.
	rec := rightsize.Recommend("web-01", "Standard_D2s_v3", flat(5, 100))
	c.Assert(rec.Reason, gc.Equals, "underutilized")
	rec = rightsize.Recommend("web-01", "Standard_B2s", flat(75, 100))
	c.Assert(rec.Action, gc.Equals, rightsize.ActionKeep)
}

func (s *rightsizeSuite) TestIdleClampsAtBottomOfLadder(c *gc.C) {
	rec := rightsize.Recommend("web-01", "Standard_B1s", flat(1, 100))
	c.Assert(rec.Action, gc.Equals, rightsize.ActionKeep)
	c.Assert(rec.TargetSize, gc.Equals, "Standard_B1s")
}

func (s *rightsizeSuite) TestIdleSecondTierClampsToBottom(c *gc.C) {
	rec := rightsize.Recommend("web-01", "Standard_B2s", flat(1, 100))
	c.Assert(rec.Action, gc.Equals, rightsize.ActionDownsize)
	c.Assert(rec.TargetSize, gc.Equals, "Standard_B1s")
}

func (s *rightsizeSuite) TestSaturatedClampsAtTopOfLadder(c *gc.C) {
	rec := rightsize.Recommend("web-01", "Standard_D8s_v3", flat(95, 100))
	c.Assert(rec.Action, gc.Equals, rightsize.ActionKeep)
	c.Assert(rec.TargetSize, gc.Equals, "Standard_D8s_v3")
}

func (s *rightsizeSuite) TestUnknownSizeStaysPut(c *gc.C) {
	rec := rightsize.Recommend("gpu-01", "Standard_NC6", flat(1, 100))
	c.Assert(rec.Action, gc.Equals, rightsize.ActionKeep)
	c.Assert(rec.TargetSize, gc.Equals, "Standard_NC6")
}

func (s *rightsizeSuite) TestStatsAreReported(c *gc.C) {
	samples := []float64{10, 20, 30, 40}
	rec := rightsize.Recommend("web-01", "Standard_B2s", samples)
	c.Assert(rec.AvgCPU, gc.Equals, 25.0)
	c.Assert(rec.P95CPU, gc.Equals, 40.0)
}
