// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package rbac

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v3"
	"github.com/juju/errors"
	"github.com/juju/retry"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/errorutils"
)

const (
	// Error codes Azure returns for role assignment creation.
	codeRoleAssignmentExists = "RoleAssignmentExists"
	codePrincipalNotFound    = "PrincipalNotFound"

	// A freshly created principal takes a little while to replicate
	// through the directory; assignment creation is retried over this
	// window before the failure is treated as real.
	principalRetryDelay    = 5 * time.Second
	principalRetryAttempts = 10
)

// AssignmentParams describe a role assignment to create.
type AssignmentParams struct {
	// PrincipalID is the object ID of the user, group or service
	// principal being granted the role.
	PrincipalID string

	// PrincipalType is the principal's type, e.g. User.
	PrincipalType armauthorization.PrincipalType

	// RoleName is the display name of the role to grant.
	RoleName string

	// Scope is the scope at which the role applies.
	Scope string
}

// CreateAssignment grants the role named in params to the principal at
// the given scope. An assignment that already exists is a success. A
// PrincipalNotFound failure is retried for a short period, because new
// principals are visible to Graph before they are visible to ARM.
func (m *Manager) CreateAssignment(ctx context.Context, params AssignmentParams) error {
	def, err := m.findRoleDefinition(ctx, params.Scope, params.RoleName)
	if err != nil {
		return errors.Trace(err)
	}
	client, err := m.clients.RoleAssignments()
	if err != nil {
		return errors.Trace(err)
	}
	assignmentID, err := m.newUUID()
	if err != nil {
		return errors.Trace(err)
	}

	createOnce := func() error {
		return m.callARM(func() error {
			_, err := client.Create(ctx, params.Scope, assignmentID.String(),
				armauthorization.RoleAssignmentCreateParameters{
					Properties: &armauthorization.RoleAssignmentProperties{
						PrincipalID:      to.Ptr(params.PrincipalID),
						PrincipalType:    to.Ptr(params.PrincipalType),
						RoleDefinitionID: def.ID,
					},
				}, nil)
			return err
		})
	}
	err = retry.Call(retry.CallArgs{
		Func: createOnce,
		IsFatalError: func(err error) bool {
			return !errorutils.HasErrorCode(err, codePrincipalNotFound)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("principal %q not yet visible (attempt %d)", params.PrincipalID, attempt)
		},
		Attempts: principalRetryAttempts,
		Delay:    principalRetryDelay,
		Clock:    m.clients.Clock(),
	})
	if err != nil {
		if errorutils.HasErrorCode(err, codeRoleAssignmentExists) || errorutils.IsConflict(err) {
			logger.Debugf("role %q already assigned to %q at %q",
				params.RoleName, params.PrincipalID, params.Scope)
			return nil
		}
		return errors.Annotatef(err, "assigning role %q to %q", params.RoleName, params.PrincipalID)
	}
	logger.Infof("assigned role %q to %q at %q", params.RoleName, params.PrincipalID, params.Scope)
	return nil
}

// DeleteAssignment removes a role assignment by name at the given scope.
func (m *Manager) DeleteAssignment(ctx context.Context, scope, name string) error {
	client, err := m.clients.RoleAssignments()
	if err != nil {
		return errors.Trace(err)
	}
	if err := m.callARM(func() error {
		_, err := client.Delete(ctx, scope, name, nil)
		return err
	}); err != nil {
		if errorutils.IsNotFound(err) {
			return nil
		}
		return errors.Annotatef(err, "deleting role assignment %q", name)
	}
	logger.Infof("deleted role assignment %q", name)
	return nil
}

// listAssignments fetches every role assignment visible at scope.
func (m *Manager) listAssignments(ctx context.Context, scope string) ([]*armauthorization.RoleAssignment, error) {
	client, err := m.clients.RoleAssignments()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var assignments []*armauthorization.RoleAssignment
	pager := client.NewListForScopePager(scope, nil)
	for pager.More() {
		next, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotatef(err, "listing role assignments at %q", scope)
		}
		assignments = append(assignments, next.Value...)
	}
	return assignments, nil
}
