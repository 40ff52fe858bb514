// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package provision

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/errorutils"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/labspec"
)

// storageNameAttempts bounds how many suffixed candidate names are tried
// when the requested storage account name is globally taken.
const storageNameAttempts = 3

// StorageAccount describes a storage account for inventory output.
type StorageAccount struct {
	Name     string            `json:"name" yaml:"name"`
	Group    string            `json:"group" yaml:"group"`
	Location string            `json:"location" yaml:"location"`
	SKU      string            `json:"sku,omitempty" yaml:"sku,omitempty"`
	Kind     string            `json:"kind,omitempty" yaml:"kind,omitempty"`
	Tags     map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// CreateStorageAccount provisions a StorageV2 account named after the
// spec's prefix, appending a random numeric suffix while the candidate
// name is taken elsewhere in Azure. The final name is returned.
func (p *Provisioner) CreateStorageAccount(ctx context.Context, lab *labspec.Lab, spec labspec.StorageSpec) (string, error) {
	client, err := p.clients.StorageAccounts()
	if err != nil {
		return "", errors.Trace(err)
	}

	name, err := p.availableStorageName(ctx, client, spec.Prefix)
	if err != nil {
		return "", errors.Trace(err)
	}

	if err := p.callARM(func() error {
		poller, err := client.BeginCreate(ctx, lab.GroupName(), name, armstorage.AccountCreateParameters{
			Location: to.Ptr(lab.Location),
			Kind:     to.Ptr(armstorage.KindStorageV2),
			SKU: &armstorage.SKU{
				Name: to.Ptr(armstorage.SKUName(spec.SKU)),
			},
			Tags: toTagsPtr(lab.GroupTags()),
			Properties: &armstorage.AccountPropertiesCreateParameters{
				EnableHTTPSTrafficOnly: to.Ptr(true),
				MinimumTLSVersion:      to.Ptr(armstorage.MinimumTLSVersionTLS12),
				AllowBlobPublicAccess:  to.Ptr(false),
			},
		}, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	}); err != nil {
		return "", errors.Annotatef(err, "creating storage account %q", name)
	}
	logger.Infof("storage account %q (%s) in %q", name, spec.SKU, lab.GroupName())
	return name, nil
}

// availableStorageName finds a globally available storage account name
// starting from the given prefix. Storage account names are unique
// across all of Azure, not just the subscription, so collisions with
// strangers' accounts are routine.
func (p *Provisioner) availableStorageName(ctx context.Context, client *armstorage.AccountsClient, prefix string) (string, error) {
	candidate := prefix
	for attempt := 0; attempt < storageNameAttempts; attempt++ {
		var available bool
		var reason string
		if err := p.callARM(func() error {
			resp, err := client.CheckNameAvailability(ctx, armstorage.AccountCheckNameAvailabilityParameters{
				Name: to.Ptr(candidate),
				Type: to.Ptr("Microsoft.Storage/storageAccounts"),
			}, nil)
			if err != nil {
				return err
			}
			available = toValue(resp.NameAvailable)
			reason = string(toValue(resp.Reason))
			return nil
		}); err != nil {
			return "", errors.Annotatef(err, "checking name availability of %q", candidate)
		}
		if available {
			return candidate, nil
		}
		if reason == string(armstorage.ReasonAccountNameInvalid) {
			return "", errors.NotValidf("storage account name %q", candidate)
		}
		logger.Debugf("storage account name %q taken, trying a suffix", candidate)
		candidate = prefix + utils.RandomString(4, utils.Digits)
	}
	return "", errors.Errorf("no available storage account name found for prefix %q", prefix)
}

// ListStorageAccounts lists the storage accounts in a resource group.
func (p *Provisioner) ListStorageAccounts(ctx context.Context, group string) ([]StorageAccount, error) {
	client, err := p.clients.StorageAccounts()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var accounts []StorageAccount
	pager := client.NewListByResourceGroupPager(group, nil)
	for pager.More() {
		next, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotatef(err, "listing storage accounts in %q", group)
		}
		for _, account := range next.Value {
			sa := StorageAccount{
				Name:     toValue(account.Name),
				Group:    group,
				Location: toValue(account.Location),
				Kind:     string(toValue(account.Kind)),
				Tags:     toTags(account.Tags),
			}
			if account.SKU != nil {
				sa.SKU = string(toValue(account.SKU.Name))
			}
			accounts = append(accounts, sa)
		}
	}
	return accounts, nil
}

// StorageAccountKeys fetches the access keys for a storage account.
func (p *Provisioner) StorageAccountKeys(ctx context.Context, group, name string) ([]string, error) {
	client, err := p.clients.StorageAccounts()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var keys []string
	if err := p.callARM(func() error {
		resp, err := client.ListKeys(ctx, group, name, nil)
		if err != nil {
			return err
		}
		for _, key := range resp.Keys {
			keys = append(keys, toValue(key.Value))
		}
		return nil
	}); err != nil {
		return nil, errors.Annotatef(err, "listing keys for storage account %q", name)
	}
	return keys, nil
}

// DeleteStorageAccount deletes a storage account. Absence is tolerated.
func (p *Provisioner) DeleteStorageAccount(ctx context.Context, group, name string) error {
	client, err := p.clients.StorageAccounts()
	if err != nil {
		return errors.Trace(err)
	}
	if err := p.callARM(func() error {
		_, err := client.Delete(ctx, group, name, nil)
		return err
	}); err != nil {
		if errorutils.IsNotFound(err) {
			return nil
		}
		return errors.Annotatef(err, "deleting storage account %q", name)
	}
	logger.Infof("deleted storage account %q", name)
	return nil
}
