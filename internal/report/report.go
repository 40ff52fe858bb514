// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package report holds the flat row types shared by the inventory and
// audit commands, and their CSV export.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/rbac"
)

// InventoryRow is one resource in the inventory report.
type InventoryRow struct {
	Name     string            `json:"name" yaml:"name"`
	Type     string            `json:"type" yaml:"type"`
	Group    string            `json:"group" yaml:"group"`
	Location string            `json:"location" yaml:"location"`
	Tags     map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// MissingTags lists required tag keys the resource lacks.
	MissingTags []string `json:"missing-tags,omitempty" yaml:"missing-tags,omitempty"`
}

// Inventory is the full inventory report for one or more groups.
type Inventory struct {
	GeneratedAt  time.Time      `json:"generated-at" yaml:"generated-at"`
	Subscription string         `json:"subscription" yaml:"subscription"`
	Rows         []InventoryRow `json:"resources" yaml:"resources"`
	Untagged     int            `json:"untagged" yaml:"untagged"`
}

// BuildInventory converts resources into report rows, auditing each
// against the required tag keys.
func BuildInventory(subscription string, resources []provision.Resource, requiredTags []string) *Inventory {
	inv := &Inventory{
		GeneratedAt:  time.Now().UTC(),
		Subscription: subscription,
	}
	for _, res := range resources {
		row := InventoryRow{
			Name:        res.Name,
			Type:        res.Type,
			Group:       res.Group,
			Location:    res.Location,
			Tags:        res.Tags,
			MissingTags: MissingTags(res.Tags, requiredTags),
		}
		if len(row.MissingTags) > 0 {
			inv.Untagged++
		}
		inv.Rows = append(inv.Rows, row)
	}
	sort.Slice(inv.Rows, func(i, j int) bool {
		if inv.Rows[i].Group != inv.Rows[j].Group {
			return inv.Rows[i].Group < inv.Rows[j].Group
		}
		return inv.Rows[i].Name < inv.Rows[j].Name
	})
	return inv
}

// MissingTags returns the required tag keys absent from tags, sorted.
func MissingTags(tags map[string]string, required []string) []string {
	if len(required) == 0 {
		return nil
	}
	have := set.NewStrings()
	for key := range tags {
		have.Add(key)
	}
	missing := set.NewStrings(required...).Difference(have)
	if missing.IsEmpty() {
		return nil
	}
	return missing.SortedValues()
}

// FlattenTags renders a tag dictionary as "k=v" pairs, sorted by key.
func FlattenTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, key := range keys {
		pairs[i] = key + "=" + tags[key]
	}
	return strings.Join(pairs, ",")
}

// WriteCSV writes a header and rows in CSV format.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return errors.Trace(err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return errors.Trace(err)
	}
	writer.Flush()
	return errors.Trace(writer.Error())
}

// WriteCSVFile writes a header and rows to a CSV file at path.
func WriteCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	return errors.Trace(WriteCSV(f, header, rows))
}

// InventoryCSV renders the inventory as CSV header and rows.
func InventoryCSV(inv *Inventory) ([]string, [][]string) {
	header := []string{"name", "type", "group", "location", "tags", "missing-tags"}
	rows := make([][]string, len(inv.Rows))
	for i, row := range inv.Rows {
		rows[i] = []string{
			row.Name,
			row.Type,
			row.Group,
			row.Location,
			FlattenTags(row.Tags),
			strings.Join(row.MissingTags, " "),
		}
	}
	return header, rows
}

// AssignmentCSV renders the RBAC audit as CSV header and rows.
func AssignmentCSV(audit *rbac.Report) ([]string, [][]string) {
	header := []string{
		"principal", "principal-id", "principal-type", "upn",
		"role", "role-type", "scope", "scope-level",
		"created-on", "created-by", "orphaned",
	}
	rows := make([][]string, len(audit.Rows))
	for i, row := range audit.Rows {
		createdOn := ""
		if !row.CreatedOn.IsZero() {
			createdOn = row.CreatedOn.UTC().Format(time.RFC3339)
		}
		orphaned := "false"
		if row.Orphaned {
			orphaned = "true"
		}
		rows[i] = []string{
			row.Principal, row.PrincipalID, row.PrincipalType, row.UPN,
			row.Role, row.RoleType, row.Scope, row.ScopeLevel,
			createdOn, row.CreatedBy, orphaned,
		}
	}
	return header, rows
}
