// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package rightsize

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/azureclients"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/errorutils"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
)

var logger = loggo.GetLogger("az104.rightsize")

const (
	cpuMetricName    = "Percentage CPU"
	memoryMetricName = "Available Memory Bytes"
)

// Analyzer fetches utilization metrics and produces recommendations.
type Analyzer struct {
	clients *azureclients.Clients
}

// NewAnalyzer returns an Analyzer using the given clients.
func NewAnalyzer(clients *azureclients.Clients) *Analyzer {
	return &Analyzer{clients: clients}
}

// FetchCPU fetches hourly average CPU percentage samples for the
// resource over the lookback window ending now.
func (a *Analyzer) FetchCPU(ctx context.Context, resourceID string, window time.Duration) ([]float64, error) {
	return a.fetchMetric(ctx, resourceID, cpuMetricName, window)
}

// FetchAvailableMemory fetches hourly average available-memory samples
// (in bytes) for the resource over the lookback window ending now.
func (a *Analyzer) FetchAvailableMemory(ctx context.Context, resourceID string, window time.Duration) ([]float64, error) {
	return a.fetchMetric(ctx, resourceID, memoryMetricName, window)
}

func (a *Analyzer) fetchMetric(ctx context.Context, resourceID, metricName string, window time.Duration) ([]float64, error) {
	client, err := a.clients.Metrics()
	if err != nil {
		return nil, errors.Trace(err)
	}
	end := a.clients.Clock().Now().UTC()
	start := end.Add(-window)
	timespan := fmt.Sprintf("%s/%s", start.Format(time.RFC3339), end.Format(time.RFC3339))

	var samples []float64
	if err := errorutils.CallARM(a.clients.Clock(), func() error {
		resp, err := client.List(ctx, resourceID, &armmonitor.MetricsClientListOptions{
			Timespan:    to.Ptr(timespan),
			Interval:    to.Ptr("PT1H"),
			Metricnames: to.Ptr(metricName),
			Aggregation: to.Ptr("Average"),
		})
		if err != nil {
			return err
		}
		samples = samples[:0]
		for _, metric := range resp.Value {
			for _, series := range metric.Timeseries {
				for _, point := range series.Data {
					if point.Average != nil {
						samples = append(samples, *point.Average)
					}
				}
			}
		}
		return nil
	}); err != nil {
		return nil, errors.Annotatef(err, "fetching %q for %q", metricName, resourceID)
	}
	return samples, nil
}

// AnalyzeGroup produces a recommendation for each VM. A VM whose
// metrics cannot be fetched is reported with no data rather than
// aborting the run. Available memory does not feed the verdict, only
// the report; the thresholds are CPU-only.
func (a *Analyzer) AnalyzeGroup(ctx context.Context, vms []provision.VM, window time.Duration) []Recommendation {
	recommendations := make([]Recommendation, 0, len(vms))
	for _, vm := range vms {
		samples, err := a.FetchCPU(ctx, vm.ID, window)
		if err != nil {
			logger.Warningf("cannot fetch CPU metrics for %q: %v", vm.Name, err)
			samples = nil
		}
		rec := Recommend(vm.Name, vm.Size, samples)
		memory, err := a.FetchAvailableMemory(ctx, vm.ID, window)
		if err != nil {
			logger.Warningf("cannot fetch memory metrics for %q: %v", vm.Name, err)
		} else if len(memory) > 0 {
			rec.AvgMemAvailableMB = round2(mean(memory) / (1 << 20))
		}
		recommendations = append(recommendations, rec)
	}
	return recommendations
}
