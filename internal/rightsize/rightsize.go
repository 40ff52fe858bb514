// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package rightsize maps VM utilization metrics onto size
// recommendations via ordered thresholds over a fixed size ladder.
package rightsize

import (
	"math"
	"sort"
)

// Actions a recommendation can take.
const (
	ActionKeep     = "keep"
	ActionDownsize = "downsize"
	ActionUpsize   = "upsize"
)

// sizeLadder orders the burstable/general-purpose sizes the labs use,
// cheapest first. Recommendations move along this ladder and clamp at
// both ends.
var sizeLadder = []string{
	"Standard_B1s",
	"Standard_B2s",
	"Standard_D2s_v3",
	"Standard_D4s_v3",
	"Standard_D8s_v3",
}

// Thresholds, evaluated in order; the first match wins.
//
//	idle:          avg < 5%  and p95 < 20%  -> down two tiers
//	underutilized: avg < 20% and p95 < 40%  -> down one tier
//	saturated:     avg > 75% or  p95 > 90%  -> up one tier
//	otherwise keep.
const (
	idleAvgCPU      = 5.0
	idleP95CPU      = 20.0
	lowAvgCPU       = 20.0
	lowP95CPU       = 40.0
	saturatedAvgCPU = 75.0
	saturatedP95CPU = 90.0
)

// Recommendation is the right-sizing verdict for one VM.
type Recommendation struct {
	VM          string  `json:"vm" yaml:"vm"`
	CurrentSize string  `json:"current-size" yaml:"current-size"`
	AvgCPU      float64 `json:"avg-cpu" yaml:"avg-cpu"`
	P95CPU      float64 `json:"p95-cpu" yaml:"p95-cpu"`
	HasData     bool    `json:"has-data" yaml:"has-data"`

	// AvgMemAvailableMB is informational: memory does not move the
	// verdict, which keys off CPU alone. Zero when no samples arrived.
	AvgMemAvailableMB float64 `json:"avg-mem-available-mb,omitempty" yaml:"avg-mem-available-mb,omitempty"`

	Action     string `json:"action" yaml:"action"`
	TargetSize string `json:"target-size" yaml:"target-size"`
	Reason     string `json:"reason" yaml:"reason"`
}

// Recommend maps CPU utilization samples (percentages) for a VM of
// currentSize onto a size recommendation. No samples means no verdict
// beyond "keep": a machine that was deallocated all week emits nothing,
// and absence of data is not evidence of idleness.
func Recommend(vmName, currentSize string, samples []float64) Recommendation {
	rec := Recommendation{
		VM:          vmName,
		CurrentSize: currentSize,
		Action:      ActionKeep,
		TargetSize:  currentSize,
	}
	if len(samples) == 0 {
		rec.Reason = "no data"
		return rec
	}
	rec.HasData = true
	rec.AvgCPU = round2(mean(samples))
	rec.P95CPU = round2(percentile95(samples))

	switch {
	case rec.AvgCPU < idleAvgCPU && rec.P95CPU < idleP95CPU:
		rec.Action = ActionDownsize
		rec.TargetSize = shift(currentSize, -2)
		rec.Reason = "idle"
	case rec.AvgCPU < lowAvgCPU && rec.P95CPU < lowP95CPU:
		rec.Action = ActionDownsize
		rec.TargetSize = shift(currentSize, -1)
		rec.Reason = "underutilized"
	case rec.AvgCPU > saturatedAvgCPU || rec.P95CPU > saturatedP95CPU:
		rec.Action = ActionUpsize
		rec.TargetSize = shift(currentSize, 1)
		rec.Reason = "saturated"
	default:
		rec.Reason = "within range"
	}
	if rec.TargetSize == currentSize {
		rec.Action = ActionKeep
	}
	return rec
}

// shift moves along the size ladder by delta steps, clamping at the
// ends. A size not on the ladder stays put: there is no defensible
// neighbour for, say, a GPU size.
func shift(size string, delta int) string {
	index := -1
	for i, name := range sizeLadder {
		if name == size {
			index = i
			break
		}
	}
	if index < 0 {
		return size
	}
	index += delta
	if index < 0 {
		index = 0
	}
	if index >= len(sizeLadder) {
		index = len(sizeLadder) - 1
	}
	return sizeLadder[index]
}

func mean(samples []float64) float64 {
	var total float64
	for _, sample := range samples {
		total += sample
	}
	return total / float64(len(samples))
}

func percentile95(samples []float64) float64 {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	rank := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
