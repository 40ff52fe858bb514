// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package provision

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/juju/errors"
)

const (
	labVirtualNetworkName = "lab-vnet"
	labSubnetName         = "default"
	labSecurityGroupName  = "lab-nsg"

	labAddressSpace = "10.10.0.0/16"
	labSubnetPrefix = "10.10.1.0/24"
)

// EnsureNetwork creates the lab virtual network, subnet and network
// security group if they are missing, and returns the subnet ID that VM
// NICs attach to. The NSG admits SSH only.
func (p *Provisioner) EnsureNetwork(ctx context.Context, group, location string) (string, error) {
	nsgID, err := p.ensureSecurityGroup(ctx, group, location)
	if err != nil {
		return "", errors.Trace(err)
	}

	client, err := p.clients.VirtualNetworks()
	if err != nil {
		return "", errors.Trace(err)
	}
	var subnetID string
	if err := p.callARM(func() error {
		poller, err := client.BeginCreateOrUpdate(ctx, group, labVirtualNetworkName, armnetwork.VirtualNetwork{
			Location: to.Ptr(location),
			Properties: &armnetwork.VirtualNetworkPropertiesFormat{
				AddressSpace: &armnetwork.AddressSpace{
					AddressPrefixes: []*string{to.Ptr(labAddressSpace)},
				},
				Subnets: []*armnetwork.Subnet{{
					Name: to.Ptr(labSubnetName),
					Properties: &armnetwork.SubnetPropertiesFormat{
						AddressPrefix: to.Ptr(labSubnetPrefix),
						NetworkSecurityGroup: &armnetwork.SecurityGroup{
							ID: to.Ptr(nsgID),
						},
					},
				}},
			},
		}, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		for _, subnet := range resp.Properties.Subnets {
			if toValue(subnet.Name) == labSubnetName {
				subnetID = toValue(subnet.ID)
			}
		}
		return nil
	}); err != nil {
		return "", errors.Annotatef(err, "creating virtual network %q", labVirtualNetworkName)
	}
	if subnetID == "" {
		return "", errors.NotFoundf("subnet %q in virtual network %q", labSubnetName, labVirtualNetworkName)
	}
	logger.Infof("virtual network %q with subnet %q", labVirtualNetworkName, labSubnetName)
	return subnetID, nil
}

func (p *Provisioner) ensureSecurityGroup(ctx context.Context, group, location string) (string, error) {
	client, err := p.clients.SecurityGroups()
	if err != nil {
		return "", errors.Trace(err)
	}
	var nsgID string
	if err := p.callARM(func() error {
		poller, err := client.BeginCreateOrUpdate(ctx, group, labSecurityGroupName, armnetwork.SecurityGroup{
			Location: to.Ptr(location),
			Properties: &armnetwork.SecurityGroupPropertiesFormat{
				SecurityRules: []*armnetwork.SecurityRule{{
					Name: to.Ptr("allow-ssh"),
					Properties: &armnetwork.SecurityRulePropertiesFormat{
						Description:              to.Ptr("SSH access to lab machines"),
						Protocol:                 to.Ptr(armnetwork.SecurityRuleProtocolTCP),
						Direction:                to.Ptr(armnetwork.SecurityRuleDirectionInbound),
						Access:                   to.Ptr(armnetwork.SecurityRuleAccessAllow),
						Priority:                 to.Ptr[int32](300),
						SourceAddressPrefix:      to.Ptr("*"),
						SourcePortRange:          to.Ptr("*"),
						DestinationAddressPrefix: to.Ptr("*"),
						DestinationPortRange:     to.Ptr("22"),
					},
				}},
			},
		}, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		nsgID = toValue(resp.ID)
		return nil
	}); err != nil {
		return "", errors.Annotatef(err, "creating network security group %q", labSecurityGroupName)
	}
	return nsgID, nil
}

// createVMNetworking creates the public IP and NIC for one VM and
// returns the NIC ID.
func (p *Provisioner) createVMNetworking(ctx context.Context, group, location, vmName, subnetID string) (string, error) {
	pipClient, err := p.clients.PublicIPAddresses()
	if err != nil {
		return "", errors.Trace(err)
	}
	pipName := fmt.Sprintf("%s-pip", vmName)
	var pipID string
	if err := p.callARM(func() error {
		poller, err := pipClient.BeginCreateOrUpdate(ctx, group, pipName, armnetwork.PublicIPAddress{
			Location: to.Ptr(location),
			Properties: &armnetwork.PublicIPAddressPropertiesFormat{
				PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
			},
		}, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		pipID = toValue(resp.ID)
		return nil
	}); err != nil {
		return "", errors.Annotatef(err, "creating public IP %q", pipName)
	}

	nicClient, err := p.clients.Interfaces()
	if err != nil {
		return "", errors.Trace(err)
	}
	nicName := fmt.Sprintf("%s-nic", vmName)
	var nicID string
	if err := p.callARM(func() error {
		poller, err := nicClient.BeginCreateOrUpdate(ctx, group, nicName, armnetwork.Interface{
			Location: to.Ptr(location),
			Properties: &armnetwork.InterfacePropertiesFormat{
				IPConfigurations: []*armnetwork.InterfaceIPConfiguration{{
					Name: to.Ptr("primary"),
					Properties: &armnetwork.InterfaceIPConfigurationPropertiesFormat{
						Subnet:                    &armnetwork.Subnet{ID: to.Ptr(subnetID)},
						PrivateIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodDynamic),
						PublicIPAddress:           &armnetwork.PublicIPAddress{ID: to.Ptr(pipID)},
					},
				}},
			},
		}, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		nicID = toValue(resp.ID)
		return nil
	}); err != nil {
		return "", errors.Annotatef(err, "creating network interface %q", nicName)
	}
	return nicID, nil
}
