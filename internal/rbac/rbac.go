// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package rbac manages custom role definitions and role assignments,
// and produces the unified role-assignment audit report: assignments
// joined with their role definitions and resolved principal identities,
// with summary statistics.
package rbac

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/juju/loggo/v2"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/azureclients"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/errorutils"
)

var logger = loggo.GetLogger("az104.rbac")

// Manager performs RBAC operations against one subscription.
type Manager struct {
	clients *azureclients.Clients
	newUUID func() (uuid.UUID, error)
}

// NewManager returns a Manager using the given clients.
func NewManager(clients *azureclients.Clients) *Manager {
	return &Manager{
		clients: clients,
		newUUID: uuid.NewRandom,
	}
}

// NewManagerWithUUIDs returns a Manager with a deterministic UUID
// source, for tests.
func NewManagerWithUUIDs(clients *azureclients.Clients, newUUID func() (uuid.UUID, error)) *Manager {
	return &Manager{clients: clients, newUUID: newUUID}
}

// SubscriptionScope returns the subscription-level RBAC scope.
func (m *Manager) SubscriptionScope() string {
	return fmt.Sprintf("/subscriptions/%s", m.clients.SubscriptionID())
}

// GroupScope returns the RBAC scope of a resource group.
func (m *Manager) GroupScope(group string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", m.clients.SubscriptionID(), group)
}

func (m *Manager) callARM(f func() error) error {
	return errorutils.CallARM(m.clients.Clock(), f)
}
