// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/juju/errors"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/errorutils"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/labspec"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/password"
)

// imageAliases maps the manifest's image names to marketplace image
// references. Aliases keep manifests readable; the full
// publisher:offer:sku quadruple is an implementation detail.
var imageAliases = map[string]armcompute.ImageReference{
	"ubuntu-22.04": {
		Publisher: to.Ptr("Canonical"),
		Offer:     to.Ptr("0001-com-ubuntu-server-jammy"),
		SKU:       to.Ptr("22_04-lts-gen2"),
		Version:   to.Ptr("latest"),
	},
	"ubuntu-20.04": {
		Publisher: to.Ptr("Canonical"),
		Offer:     to.Ptr("0001-com-ubuntu-server-focal"),
		SKU:       to.Ptr("20_04-lts-gen2"),
		Version:   to.Ptr("latest"),
	},
	"debian-12": {
		Publisher: to.Ptr("Debian"),
		Offer:     to.Ptr("debian-12"),
		SKU:       to.Ptr("12-gen2"),
		Version:   to.Ptr("latest"),
	},
}

// KnownImageAliases returns the image aliases a manifest may use.
func KnownImageAliases() []string {
	aliases := make([]string, 0, len(imageAliases))
	for alias := range imageAliases {
		aliases = append(aliases, alias)
	}
	return aliases
}

// VM describes a virtual machine for inventory and right-sizing.
type VM struct {
	Name       string            `json:"name" yaml:"name"`
	Group      string            `json:"group" yaml:"group"`
	Location   string            `json:"location" yaml:"location"`
	Size       string            `json:"size" yaml:"size"`
	PowerState string            `json:"power-state,omitempty" yaml:"power-state,omitempty"`
	ID         string            `json:"id,omitempty" yaml:"id,omitempty"`
	Tags       map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// CreateVMResult reports what was provisioned for one VM.
type CreateVMResult struct {
	Name string

	// AdminPassword is set only when no SSH public key was supplied and
	// a password had to be generated. It is shown once and not stored.
	AdminPassword string
}

// CreateVM provisions the VM described by spec in the lab's resource
// group, creating its NIC and public IP first. The subnetID comes from
// EnsureNetwork.
func (p *Provisioner) CreateVM(ctx context.Context, lab *labspec.Lab, spec labspec.VMSpec, subnetID string) (*CreateVMResult, error) {
	image, ok := imageAliases[spec.Image]
	if !ok {
		return nil, errors.NotValidf("image alias %q", spec.Image)
	}
	group := lab.GroupName()
	nicID, err := p.createVMNetworking(ctx, group, lab.Location, spec.Name, subnetID)
	if err != nil {
		return nil, errors.Trace(err)
	}

	osProfile := &armcompute.OSProfile{
		ComputerName:  to.Ptr(spec.Name),
		AdminUsername: to.Ptr(lab.AdminUsername),
	}
	result := &CreateVMResult{Name: spec.Name}
	if lab.SSHPublicKey != "" {
		osProfile.LinuxConfiguration = &armcompute.LinuxConfiguration{
			DisablePasswordAuthentication: to.Ptr(true),
			SSH: &armcompute.SSHConfiguration{
				PublicKeys: []*armcompute.SSHPublicKey{{
					Path:    to.Ptr(fmt.Sprintf("/home/%s/.ssh/authorized_keys", lab.AdminUsername)),
					KeyData: to.Ptr(lab.SSHPublicKey),
				}},
			},
		}
	} else {
		result.AdminPassword = password.Generate()
		osProfile.AdminPassword = to.Ptr(result.AdminPassword)
	}

	client, err := p.clients.VirtualMachines()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := p.callARM(func() error {
		poller, err := client.BeginCreateOrUpdate(ctx, group, spec.Name, armcompute.VirtualMachine{
			Location: to.Ptr(lab.Location),
			Tags:     toTagsPtr(lab.GroupTags()),
			Properties: &armcompute.VirtualMachineProperties{
				HardwareProfile: &armcompute.HardwareProfile{
					VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(spec.Size)),
				},
				StorageProfile: &armcompute.StorageProfile{
					ImageReference: &image,
					OSDisk: &armcompute.OSDisk{
						Name:         to.Ptr(fmt.Sprintf("%s-osdisk", spec.Name)),
						CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
						ManagedDisk: &armcompute.ManagedDiskParameters{
							StorageAccountType: to.Ptr(armcompute.StorageAccountTypesStandardLRS),
						},
					},
				},
				OSProfile: osProfile,
				NetworkProfile: &armcompute.NetworkProfile{
					NetworkInterfaces: []*armcompute.NetworkInterfaceReference{{
						ID: to.Ptr(nicID),
					}},
				},
			},
		}, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	}); err != nil {
		return nil, errors.Annotatef(err, "creating virtual machine %q", spec.Name)
	}
	logger.Infof("virtual machine %q (%s) in %q", spec.Name, spec.Size, group)
	return result, nil
}

// ListVMs lists the virtual machines in a resource group, including
// their power state. A VM whose instance view cannot be fetched is
// reported without a power state rather than aborting the listing.
func (p *Provisioner) ListVMs(ctx context.Context, group string) ([]VM, error) {
	client, err := p.clients.VirtualMachines()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var vms []VM
	pager := client.NewListPager(group, nil)
	for pager.More() {
		next, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotatef(err, "listing virtual machines in %q", group)
		}
		for _, machine := range next.Value {
			vm := VM{
				Name:     toValue(machine.Name),
				Group:    group,
				Location: toValue(machine.Location),
				ID:       toValue(machine.ID),
				Tags:     toTags(machine.Tags),
			}
			if props := machine.Properties; props != nil && props.HardwareProfile != nil {
				vm.Size = string(toValue(props.HardwareProfile.VMSize))
			}
			state, err := p.powerState(ctx, client, group, vm.Name)
			if err != nil {
				logger.Warningf("cannot fetch instance view for %q: %v", vm.Name, err)
			} else {
				vm.PowerState = state
			}
			vms = append(vms, vm)
		}
	}
	return vms, nil
}

func (p *Provisioner) powerState(ctx context.Context, client *armcompute.VirtualMachinesClient, group, name string) (string, error) {
	var state string
	err := p.callARM(func() error {
		view, err := client.InstanceView(ctx, group, name, nil)
		if err != nil {
			return err
		}
		for _, status := range view.Statuses {
			code := toValue(status.Code)
			if rest, ok := strings.CutPrefix(code, "PowerState/"); ok {
				state = rest
			}
		}
		return nil
	})
	return state, errors.Trace(err)
}

// DeallocateVM stops and deallocates the VM so it stops accruing
// compute charges.
func (p *Provisioner) DeallocateVM(ctx context.Context, group, name string) error {
	client, err := p.clients.VirtualMachines()
	if err != nil {
		return errors.Trace(err)
	}
	if err := p.callARM(func() error {
		poller, err := client.BeginDeallocate(ctx, group, name, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	}); err != nil {
		return errors.Annotatef(err, "deallocating virtual machine %q", name)
	}
	logger.Infof("deallocated virtual machine %q", name)
	return nil
}

// StartVM starts a deallocated or stopped VM.
func (p *Provisioner) StartVM(ctx context.Context, group, name string) error {
	client, err := p.clients.VirtualMachines()
	if err != nil {
		return errors.Trace(err)
	}
	if err := p.callARM(func() error {
		poller, err := client.BeginStart(ctx, group, name, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	}); err != nil {
		return errors.Annotatef(err, "starting virtual machine %q", name)
	}
	logger.Infof("started virtual machine %q", name)
	return nil
}

// DeleteVM deletes the VM. An already-deleted VM is not an error.
func (p *Provisioner) DeleteVM(ctx context.Context, group, name string) error {
	client, err := p.clients.VirtualMachines()
	if err != nil {
		return errors.Trace(err)
	}
	if err := p.callARM(func() error {
		poller, err := client.BeginDelete(ctx, group, name, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	}); err != nil {
		if errorutils.IsNotFound(err) {
			return nil
		}
		return errors.Annotatef(err, "deleting virtual machine %q", name)
	}
	logger.Infof("deleted virtual machine %q", name)
	return nil
}
