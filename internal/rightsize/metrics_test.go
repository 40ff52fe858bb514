// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package rightsize_test

import (
	"context"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/juju/clock/testclock"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/azureclients"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/azuretesting"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/rightsize"
)

const fakeSubscription = "22222222-2222-2222-2222-222222222222"

func (s *rightsizeSuite) newAnalyzer(c *gc.C, sender policy.Transporter) *rightsize.Analyzer {
	clients, err := azureclients.New(azureclients.Config{
		SubscriptionID: fakeSubscription,
		Credential:     &azuretesting.FakeCredential{},
		Sender:         sender,
		Clock:          testclock.NewDilatedWallClock(10 * time.Millisecond),
	})
	c.Assert(err, jc.ErrorIsNil)
	return rightsize.NewAnalyzer(clients)
}

func metricResponse(averages ...*float64) armmonitor.Response {
	data := make([]*armmonitor.MetricValue, len(averages))
	for i, average := range averages {
		data[i] = &armmonitor.MetricValue{Average: average}
	}
	return armmonitor.Response{
		Value: []*armmonitor.Metric{{
			Timeseries: []*armmonitor.TimeSeriesElement{{Data: data}},
		}},
	}
}

func (s *rightsizeSuite) TestFetchCPU(c *gc.C) {
	// The nil average is a gap with no data and is skipped.
	sender := azuretesting.NewSenderWithValue(metricResponse(
		to.Ptr(12.5), to.Ptr(14.0), nil, to.Ptr(9.5),
	))
	analyzer := s.newAnalyzer(c, sender)
	samples, err := analyzer.FetchCPU(context.Background(), "/some/vm/id", 7*24*time.Hour)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(samples, jc.DeepEquals, []float64{12.5, 14.0, 9.5})
}

func (s *rightsizeSuite) TestFetchAvailableMemory(c *gc.C) {
	sender := azuretesting.NewSenderWithValue(metricResponse(
		to.Ptr(536870912.0), to.Ptr(268435456.0),
	))
	analyzer := s.newAnalyzer(c, sender)
	samples, err := analyzer.FetchAvailableMemory(context.Background(), "/some/vm/id", 7*24*time.Hour)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(samples, jc.DeepEquals, []float64{536870912.0, 268435456.0})
}

func (s *rightsizeSuite) TestAnalyzeGroupReportsMemory(c *gc.C) {
	senders := azuretesting.NewSenders(
		// CPU first, then available memory, both for the same VM.
		azuretesting.NewSenderWithValue(metricResponse(to.Ptr(50.0), to.Ptr(50.0))),
		azuretesting.NewSenderWithValue(metricResponse(to.Ptr(536870912.0))),
	)
	analyzer := s.newAnalyzer(c, senders)
	recommendations := analyzer.AnalyzeGroup(context.Background(), []provision.VM{{
		Name: "web-01",
		ID:   "/some/vm/id",
		Size: "Standard_B2s",
	}}, 7*24*time.Hour)
	c.Assert(recommendations, gc.HasLen, 1)
	c.Assert(recommendations[0].Action, gc.Equals, rightsize.ActionKeep)
	c.Assert(recommendations[0].AvgCPU, gc.Equals, 50.0)
	c.Assert(recommendations[0].AvgMemAvailableMB, gc.Equals, 512.0)
}

func (s *rightsizeSuite) TestAnalyzeGroupMemoryFailureIsNotFatal(c *gc.C) {
	forbidden := &azuretesting.MockSender{}
	forbidden.AppendResponse(azuretesting.NewResponseWithBodyAndStatus(
		azuretesting.NewBody(`{"error":{"code":"AuthorizationFailed","message":"no reader role"}}`),
		http.StatusForbidden, "",
	))
	senders := azuretesting.NewSenders(
		azuretesting.NewSenderWithValue(metricResponse(to.Ptr(50.0), to.Ptr(50.0))),
		forbidden,
	)
	analyzer := s.newAnalyzer(c, senders)
	recommendations := analyzer.AnalyzeGroup(context.Background(), []provision.VM{{
		Name: "web-01",
		ID:   "/some/vm/id",
		Size: "Standard_B2s",
	}}, 7*24*time.Hour)
	c.Assert(recommendations, gc.HasLen, 1)
	c.Assert(recommendations[0].Reason, gc.Equals, "within range")
	c.Assert(recommendations[0].AvgMemAvailableMB, gc.Equals, 0.0)
}
