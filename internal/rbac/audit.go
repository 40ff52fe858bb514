// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package rbac

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v3"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/microsoftgraph/msgraph-sdk-go/directoryobjects"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
)

// graphGetByIDsMax is the number of IDs Graph accepts per getByIds call.
const graphGetByIDsMax = 1000

// Scope levels reported in the audit.
const (
	ScopeLevelSubscription    = "subscription"
	ScopeLevelResourceGroup   = "resource-group"
	ScopeLevelResource        = "resource"
	ScopeLevelManagementGroup = "management-group"
)

// AssignmentRow is one line of the role assignment audit: an assignment
// joined with its role definition and resolved principal identity.
type AssignmentRow struct {
	Principal     string    `json:"principal" yaml:"principal"`
	PrincipalID   string    `json:"principal-id" yaml:"principal-id"`
	PrincipalType string    `json:"principal-type" yaml:"principal-type"`
	UPN           string    `json:"upn,omitempty" yaml:"upn,omitempty"`
	Role          string    `json:"role" yaml:"role"`
	RoleType      string    `json:"role-type" yaml:"role-type"`
	Scope         string    `json:"scope" yaml:"scope"`
	ScopeLevel    string    `json:"scope-level" yaml:"scope-level"`
	CreatedOn     time.Time `json:"created-on,omitempty" yaml:"created-on,omitempty"`
	CreatedBy     string    `json:"created-by,omitempty" yaml:"created-by,omitempty"`

	// Orphaned marks assignments whose principal no longer exists in
	// the directory, typically left behind by a deleted user.
	Orphaned bool `json:"orphaned" yaml:"orphaned"`
}

// Summary aggregates the audit rows.
type Summary struct {
	Total           int            `json:"total" yaml:"total"`
	ByRole          map[string]int `json:"by-role" yaml:"by-role"`
	ByPrincipalType map[string]int `json:"by-principal-type" yaml:"by-principal-type"`
	ByScopeLevel    map[string]int `json:"by-scope-level" yaml:"by-scope-level"`
	CustomRoles     int            `json:"custom-roles" yaml:"custom-roles"`
	Orphaned        int            `json:"orphaned" yaml:"orphaned"`
}

// Report is the full audit output.
type Report struct {
	GeneratedAt time.Time       `json:"generated-at" yaml:"generated-at"`
	Scope       string          `json:"scope" yaml:"scope"`
	Rows        []AssignmentRow `json:"assignments" yaml:"assignments"`
	Summary     Summary         `json:"summary" yaml:"summary"`
}

// principalInfo is a resolved directory identity.
type principalInfo struct {
	displayName   string
	principalType string
	upn           string
}

// Audit builds the role assignment report for a scope: every assignment
// visible there, joined with its role definition and the directory
// identity of its principal, plus summary statistics.
func (m *Manager) Audit(ctx context.Context, scope string) (*Report, error) {
	assignments, err := m.listAssignments(ctx, scope)
	if err != nil {
		return nil, errors.Trace(err)
	}

	// Join key one: role definition ID -> definition, fetched once each.
	definitions, err := m.roleDefinitionsByID(ctx, assignments)
	if err != nil {
		return nil, errors.Trace(err)
	}

	// Join key two: principal object ID -> directory identity.
	principalIDs := set.NewStrings()
	for _, assignment := range assignments {
		if assignment.Properties != nil {
			principalIDs.Add(toValue(assignment.Properties.PrincipalID))
		}
	}
	principalIDs.Remove("")
	principals, resolved := m.resolvePrincipals(ctx, principalIDs.SortedValues())

	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Scope:       scope,
		Summary: Summary{
			ByRole:          make(map[string]int),
			ByPrincipalType: make(map[string]int),
			ByScopeLevel:    make(map[string]int),
		},
	}
	for _, assignment := range assignments {
		props := assignment.Properties
		if props == nil {
			continue
		}
		row := AssignmentRow{
			PrincipalID:   toValue(props.PrincipalID),
			PrincipalType: string(toValue(props.PrincipalType)),
			Scope:         toValue(props.Scope),
			ScopeLevel:    scopeLevel(toValue(props.Scope)),
			CreatedOn:     toValue(props.CreatedOn),
			CreatedBy:     toValue(props.CreatedBy),
		}
		if def, ok := definitions[toValue(props.RoleDefinitionID)]; ok {
			row.Role = def.RoleName
			row.RoleType = def.RoleType
		} else {
			row.Role = toValue(props.RoleDefinitionID)
		}
		if info, ok := principals[row.PrincipalID]; ok {
			row.Principal = info.displayName
			row.UPN = info.upn
			if info.principalType != "" {
				row.PrincipalType = info.principalType
			}
		} else {
			row.Principal = row.PrincipalID
			// Only a successful directory lookup can declare a
			// principal deleted; a failed lookup proves nothing.
			row.Orphaned = resolved
		}
		report.Rows = append(report.Rows, row)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].Principal != report.Rows[j].Principal {
			return report.Rows[i].Principal < report.Rows[j].Principal
		}
		return report.Rows[i].Role < report.Rows[j].Role
	})

	for _, row := range report.Rows {
		report.Summary.Total++
		report.Summary.ByRole[row.Role]++
		report.Summary.ByPrincipalType[row.PrincipalType]++
		report.Summary.ByScopeLevel[row.ScopeLevel]++
		if row.RoleType == customRoleType {
			report.Summary.CustomRoles++
		}
		if row.Orphaned {
			report.Summary.Orphaned++
		}
	}
	return report, nil
}

// roleDefinitionsByID fetches each distinct role definition referenced
// by the assignments, keyed by fully qualified definition ID. Failing
// to fetch one definition degrades that row, not the whole report.
func (m *Manager) roleDefinitionsByID(ctx context.Context, assignments []*armauthorization.RoleAssignment) (map[string]Role, error) {
	client, err := m.clients.RoleDefinitions()
	if err != nil {
		return nil, errors.Trace(err)
	}
	definitions := make(map[string]Role)
	for _, assignment := range assignments {
		if assignment.Properties == nil {
			continue
		}
		definitionID := toValue(assignment.Properties.RoleDefinitionID)
		if definitionID == "" {
			continue
		}
		if _, ok := definitions[definitionID]; ok {
			continue
		}
		var role Role
		if err := m.callARM(func() error {
			resp, err := client.GetByID(ctx, definitionID, nil)
			if err != nil {
				return err
			}
			role = roleInfo(&resp.RoleDefinition)
			return nil
		}); err != nil {
			logger.Warningf("cannot fetch role definition %q: %v", definitionID, err)
			continue
		}
		definitions[definitionID] = role
	}
	return definitions, nil
}

func scopeLevel(scope string) string {
	lower := strings.ToLower(scope)
	switch {
	case strings.Contains(lower, "/providers/microsoft.management/"):
		return ScopeLevelManagementGroup
	case strings.Contains(lower, "/resourcegroups/") && strings.Contains(lower[strings.Index(lower, "/resourcegroups/")+len("/resourcegroups/"):], "/providers/"):
		return ScopeLevelResource
	case strings.Contains(lower, "/resourcegroups/"):
		return ScopeLevelResourceGroup
	default:
		return ScopeLevelSubscription
	}
}

// resolvePrincipals looks up directory identities for the given object
// IDs via the Graph getByIds endpoint. The boolean result reports
// whether the directory was successfully consulted; ids absent from a
// successful response belong to deleted principals.
func (m *Manager) resolvePrincipals(ctx context.Context, ids []string) (map[string]principalInfo, bool) {
	if len(ids) == 0 {
		return nil, true
	}
	graph, err := m.clients.Graph()
	if err != nil {
		logger.Warningf("cannot construct Graph client, principal names unresolved: %v", err)
		return nil, false
	}
	result := make(map[string]principalInfo)
	for start := 0; start < len(ids); start += graphGetByIDsMax {
		end := start + graphGetByIDsMax
		if end > len(ids) {
			end = len(ids)
		}
		body := directoryobjects.NewGetByIdsPostRequestBody()
		body.SetIds(ids[start:end])
		resp, err := graph.DirectoryObjects().GetByIds().PostAsGetByIdsPostResponse(ctx, body, nil)
		if err != nil {
			logger.Warningf("directory lookup failed, principal names unresolved: %v", err)
			return result, false
		}
		for _, object := range resp.GetValue() {
			id := toValue(object.GetId())
			switch principal := object.(type) {
			case models.Userable:
				result[id] = principalInfo{
					displayName:   toValue(principal.GetDisplayName()),
					upn:           toValue(principal.GetUserPrincipalName()),
					principalType: "User",
				}
			case models.ServicePrincipalable:
				result[id] = principalInfo{
					displayName:   toValue(principal.GetDisplayName()),
					principalType: "ServicePrincipal",
				}
			case models.Groupable:
				result[id] = principalInfo{
					displayName:   toValue(principal.GetDisplayName()),
					principalType: "Group",
				}
			default:
				result[id] = principalInfo{displayName: id}
			}
		}
	}
	return result, true
}
