// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package provision

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/juju/errors"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/errorutils"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/labspec"
)

// Group describes a resource group the toolkit knows about.
type Group struct {
	Name     string            `json:"name" yaml:"name"`
	Location string            `json:"location" yaml:"location"`
	Lab      string            `json:"lab,omitempty" yaml:"lab,omitempty"`
	Tags     map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// EnsureGroup creates the resource group if it does not exist, and
// refreshes its tags if it does. It reports whether the group was created.
func (p *Provisioner) EnsureGroup(ctx context.Context, name, location string, tags map[string]string) (bool, error) {
	client, err := p.clients.ResourceGroups()
	if err != nil {
		return false, errors.Trace(err)
	}
	var exists bool
	if err := p.callARM(func() error {
		resp, err := client.CheckExistence(ctx, name, nil)
		if err != nil {
			return err
		}
		exists = resp.Success
		return nil
	}); err != nil {
		return false, errors.Annotatef(err, "checking existence of resource group %q", name)
	}
	if exists {
		logger.Debugf("resource group %q already exists", name)
	}
	if err := p.callARM(func() error {
		_, err := client.CreateOrUpdate(ctx, name, armresources.ResourceGroup{
			Location: to.Ptr(location),
			Tags:     toTagsPtr(tags),
		}, nil)
		return err
	}); err != nil {
		return false, errors.Annotatef(err, "creating resource group %q", name)
	}
	logger.Infof("resource group %q in %q", name, location)
	return !exists, nil
}

// GroupExists reports whether the named resource group exists.
func (p *Provisioner) GroupExists(ctx context.Context, name string) (bool, error) {
	client, err := p.clients.ResourceGroups()
	if err != nil {
		return false, errors.Trace(err)
	}
	var exists bool
	if err := p.callARM(func() error {
		resp, err := client.CheckExistence(ctx, name, nil)
		if err != nil {
			return err
		}
		exists = resp.Success
		return nil
	}); err != nil {
		return false, errors.Annotatef(err, "checking existence of resource group %q", name)
	}
	return exists, nil
}

// ListLabGroups lists resource groups stamped with the lab marker tag.
func (p *Provisioner) ListLabGroups(ctx context.Context) ([]Group, error) {
	return p.listGroups(ctx, &armresources.ResourceGroupsClientListOptions{
		Filter: to.Ptr(fmt.Sprintf("tagName eq '%s'", labspec.LabTagKey)),
	})
}

// ListGroups lists all resource groups in the subscription.
func (p *Provisioner) ListGroups(ctx context.Context) ([]Group, error) {
	return p.listGroups(ctx, nil)
}

func (p *Provisioner) listGroups(ctx context.Context, options *armresources.ResourceGroupsClientListOptions) ([]Group, error) {
	client, err := p.clients.ResourceGroups()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var groups []Group
	pager := client.NewListPager(options)
	for pager.More() {
		next, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotate(err, "listing resource groups")
		}
		for _, rg := range next.Value {
			tags := toTags(rg.Tags)
			groups = append(groups, Group{
				Name:     toValue(rg.Name),
				Location: toValue(rg.Location),
				Lab:      tags[labspec.LabTagKey],
				Tags:     tags,
			})
		}
	}
	return groups, nil
}

// GroupDeletion tracks one in-flight resource group deletion.
type GroupDeletion struct {
	Name   string
	poller *runtime.Poller[armresources.ResourceGroupsClientDeleteResponse]
}

// Wait blocks until the deletion completes.
func (d *GroupDeletion) Wait(ctx context.Context) error {
	if d.poller == nil {
		return nil
	}
	_, err := d.poller.PollUntilDone(ctx, nil)
	return errors.Annotatef(err, "deleting resource group %q", d.Name)
}

// BeginDeleteGroup starts deletion of the named resource group. A group
// that is already gone yields a no-op deletion.
func (p *Provisioner) BeginDeleteGroup(ctx context.Context, name string) (*GroupDeletion, error) {
	client, err := p.clients.ResourceGroups()
	if err != nil {
		return nil, errors.Trace(err)
	}
	deletion := &GroupDeletion{Name: name}
	if err := p.callARM(func() error {
		poller, err := client.BeginDelete(ctx, name, nil)
		if err != nil {
			return err
		}
		deletion.poller = poller
		return nil
	}); err != nil {
		if errorutils.IsNotFound(err) {
			logger.Debugf("resource group %q already deleted", name)
			return deletion, nil
		}
		return nil, errors.Annotatef(err, "deleting resource group %q", name)
	}
	logger.Infof("deleting resource group %q", name)
	return deletion, nil
}

// UpdateGroupTags merges the given tags into the resource group's tags.
func (p *Provisioner) UpdateGroupTags(ctx context.Context, name string, tags map[string]string) error {
	client, err := p.clients.Tags()
	if err != nil {
		return errors.Trace(err)
	}
	scope := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", p.clients.SubscriptionID(), name)
	if err := p.callARM(func() error {
		_, err := client.UpdateAtScope(ctx, scope, armresources.TagsPatchResource{
			Operation: to.Ptr(armresources.TagsPatchOperationMerge),
			Properties: &armresources.Tags{
				Tags: toTagsPtr(tags),
			},
		}, nil)
		return err
	}); err != nil {
		return errors.Annotatef(err, "updating tags on resource group %q", name)
	}
	return nil
}
