// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package rbac

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v3"
	"github.com/juju/errors"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/labspec"
)

const customRoleType = "CustomRole"

// Role describes a role definition.
type Role struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	RoleName    string   `json:"role-name" yaml:"role-name"`
	RoleType    string   `json:"role-type" yaml:"role-type"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Actions     []string `json:"actions,omitempty" yaml:"actions,omitempty"`
	NotActions  []string `json:"not-actions,omitempty" yaml:"not-actions,omitempty"`
}

func roleInfo(def *armauthorization.RoleDefinition) Role {
	role := Role{
		ID:   toValue(def.ID),
		Name: toValue(def.Name),
	}
	if props := def.Properties; props != nil {
		role.RoleName = toValue(props.RoleName)
		role.RoleType = toValue(props.RoleType)
		role.Description = toValue(props.Description)
		for _, permission := range props.Permissions {
			for _, action := range permission.Actions {
				role.Actions = append(role.Actions, toValue(action))
			}
			for _, action := range permission.NotActions {
				role.NotActions = append(role.NotActions, toValue(action))
			}
		}
	}
	return role
}

// findRoleDefinition finds a role definition by its display name at the
// given scope. Returns a NotFound error when there is no such role.
func (m *Manager) findRoleDefinition(ctx context.Context, scope, roleName string) (*armauthorization.RoleDefinition, error) {
	client, err := m.clients.RoleDefinitions()
	if err != nil {
		return nil, errors.Trace(err)
	}
	pager := client.NewListPager(scope, &armauthorization.RoleDefinitionsClientListOptions{
		Filter: to.Ptr(fmt.Sprintf("roleName eq '%s'", roleName)),
	})
	for pager.More() {
		next, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotatef(err, "listing role definitions named %q", roleName)
		}
		for _, def := range next.Value {
			if def.Properties != nil && toValue(def.Properties.RoleName) == roleName {
				return def, nil
			}
		}
	}
	return nil, errors.NotFoundf("role definition %q", roleName)
}

// EnsureCustomRole creates or updates a custom role definition at
// subscription scope and returns its fully qualified definition ID.
// An existing definition with the same display name keeps its GUID, so
// repeated provisioning converges rather than multiplying roles.
func (m *Manager) EnsureCustomRole(ctx context.Context, spec *labspec.RoleSpec) (string, error) {
	scope := m.SubscriptionScope()
	roleID := ""
	existing, err := m.findRoleDefinition(ctx, scope, spec.Name)
	if err == nil {
		roleID = toValue(existing.Name)
		logger.Debugf("custom role %q exists as %q", spec.Name, roleID)
	} else if !errors.Is(err, errors.NotFound) {
		return "", errors.Trace(err)
	}
	if roleID == "" {
		newID, err := m.newUUID()
		if err != nil {
			return "", errors.Trace(err)
		}
		roleID = newID.String()
	}

	client, err := m.clients.RoleDefinitions()
	if err != nil {
		return "", errors.Trace(err)
	}
	var definitionID string
	if err := m.callARM(func() error {
		resp, err := client.CreateOrUpdate(ctx, scope, roleID, armauthorization.RoleDefinition{
			Properties: &armauthorization.RoleDefinitionProperties{
				RoleName:    to.Ptr(spec.Name),
				Description: to.Ptr(spec.Description),
				RoleType:    to.Ptr(customRoleType),
				AssignableScopes: []*string{
					to.Ptr(scope),
				},
				Permissions: []*armauthorization.Permission{{
					Actions:    to.SliceOfPtrs(spec.Actions...),
					NotActions: to.SliceOfPtrs(spec.NotActions...),
				}},
			},
		}, nil)
		if err != nil {
			return err
		}
		definitionID = toValue(resp.ID)
		return nil
	}); err != nil {
		return "", errors.Annotatef(err, "creating custom role %q", spec.Name)
	}
	logger.Infof("custom role %q (%s)", spec.Name, roleID)
	return definitionID, nil
}

// ListRoles lists role definitions at subscription scope. With
// customOnly, built-in roles are filtered out server-side.
func (m *Manager) ListRoles(ctx context.Context, customOnly bool) ([]Role, error) {
	client, err := m.clients.RoleDefinitions()
	if err != nil {
		return nil, errors.Trace(err)
	}
	options := &armauthorization.RoleDefinitionsClientListOptions{}
	if customOnly {
		options.Filter = to.Ptr("type eq 'CustomRole'")
	}
	var roles []Role
	pager := client.NewListPager(m.SubscriptionScope(), options)
	for pager.More() {
		next, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotate(err, "listing role definitions")
		}
		for _, def := range next.Value {
			roles = append(roles, roleInfo(def))
		}
	}
	return roles, nil
}

// DeleteCustomRole deletes the named custom role definition. Deletion
// is refused while role assignments still reference the definition,
// since Azure would otherwise leave them orphaned.
func (m *Manager) DeleteCustomRole(ctx context.Context, roleName string) error {
	scope := m.SubscriptionScope()
	def, err := m.findRoleDefinition(ctx, scope, roleName)
	if err != nil {
		return errors.Trace(err)
	}
	if def.Properties != nil && toValue(def.Properties.RoleType) != customRoleType {
		return errors.Errorf("role %q is built-in and cannot be deleted", roleName)
	}
	definitionID := toValue(def.ID)

	assignments, err := m.listAssignments(ctx, scope)
	if err != nil {
		return errors.Trace(err)
	}
	var referenced int
	for _, assignment := range assignments {
		if assignment.Properties != nil && toValue(assignment.Properties.RoleDefinitionID) == definitionID {
			referenced++
		}
	}
	if referenced > 0 {
		return errors.Errorf(
			"cannot delete role %q: %d role assignment(s) still reference it", roleName, referenced)
	}

	client, err := m.clients.RoleDefinitions()
	if err != nil {
		return errors.Trace(err)
	}
	if err := m.callARM(func() error {
		_, err := client.Delete(ctx, scope, toValue(def.Name), nil)
		return err
	}); err != nil {
		return errors.Annotatef(err, "deleting custom role %q", roleName)
	}
	logger.Infof("deleted custom role %q", roleName)
	return nil
}
