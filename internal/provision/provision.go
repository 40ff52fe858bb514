// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package provision creates, lists and deletes the Azure resources a
// practice lab is made of: resource groups, the minimal network a lab VM
// needs, virtual machines, storage accounts and container instances.
package provision

import (
	"github.com/juju/loggo/v2"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/azureclients"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/errorutils"
)

var logger = loggo.GetLogger("az104.provision")

// Provisioner performs resource operations against one subscription.
type Provisioner struct {
	clients *azureclients.Clients
}

// NewProvisioner returns a Provisioner using the given clients.
func NewProvisioner(clients *azureclients.Clients) *Provisioner {
	return &Provisioner{clients: clients}
}

// callARM wraps an ARM call with rate-limit backoff.
func (p *Provisioner) callARM(f func() error) error {
	return errorutils.CallARM(p.clients.Clock(), f)
}

// toValue returns the value pointed at, or the zero value for a nil pointer.
// The ARM SDK models use pointers throughout.
func toValue[T any](v *T) T {
	if v == nil {
		var result T
		return result
	}
	return *v
}

// toTags converts SDK tag maps to plain string maps.
func toTags(tags map[string]*string) map[string]string {
	if tags == nil {
		return nil
	}
	result := make(map[string]string, len(tags))
	for k, v := range tags {
		result[k] = toValue(v)
	}
	return result
}

// toTagsPtr converts plain string maps to SDK tag maps.
func toTagsPtr(tags map[string]string) map[string]*string {
	result := make(map[string]*string, len(tags))
	for k, v := range tags {
		v := v
		result[k] = &v
	}
	return result
}
