// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package provision

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/juju/errors"
)

// Resource describes one resource of any type within a resource group.
type Resource struct {
	Name     string            `json:"name" yaml:"name"`
	Type     string            `json:"type" yaml:"type"`
	Group    string            `json:"group" yaml:"group"`
	Location string            `json:"location" yaml:"location"`
	ID       string            `json:"id,omitempty" yaml:"id,omitempty"`
	Tags     map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ListResources lists every resource in the given resource group.
func (p *Provisioner) ListResources(ctx context.Context, group string) ([]Resource, error) {
	client, err := p.clients.Resources()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var resources []Resource
	pager := client.NewListByResourceGroupPager(group, &armresources.ClientListByResourceGroupOptions{})
	for pager.More() {
		next, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotatef(err, "listing resources in %q", group)
		}
		for _, res := range next.Value {
			resources = append(resources, Resource{
				Name:     toValue(res.Name),
				Type:     toValue(res.Type),
				Group:    group,
				Location: toValue(res.Location),
				ID:       toValue(res.ID),
				Tags:     toTags(res.Tags),
			})
		}
	}
	return resources, nil
}

// SubscriptionInfo holds display metadata for the target subscription.
type SubscriptionInfo struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display-name" yaml:"display-name"`
	State       string `json:"state" yaml:"state"`
}

// Subscription fetches display metadata for the target subscription.
func (p *Provisioner) Subscription(ctx context.Context) (*SubscriptionInfo, error) {
	client, err := p.clients.Subscriptions()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var info SubscriptionInfo
	if err := p.callARM(func() error {
		resp, err := client.Get(ctx, p.clients.SubscriptionID(), nil)
		if err != nil {
			return err
		}
		info = SubscriptionInfo{
			ID:          toValue(resp.SubscriptionID),
			DisplayName: toValue(resp.DisplayName),
			State:       string(toValue(resp.State)),
		}
		return nil
	}); err != nil {
		return nil, errors.Annotate(err, "fetching subscription")
	}
	return &info, nil
}

// Locations lists the region names available to the subscription.
func (p *Provisioner) Locations(ctx context.Context) ([]string, error) {
	client, err := p.clients.Subscriptions()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var locations []string
	pager := client.NewListLocationsPager(p.clients.SubscriptionID(), nil)
	for pager.More() {
		next, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotate(err, "listing locations")
		}
		for _, location := range next.Value {
			locations = append(locations, toValue(location.Name))
		}
	}
	return locations, nil
}
