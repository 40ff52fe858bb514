// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package provision

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerinstance/armcontainerinstance/v2"
	"github.com/juju/errors"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/errorutils"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/labspec"
)

// ContainerGroup describes a container instance for inventory output.
type ContainerGroup struct {
	Name     string            `json:"name" yaml:"name"`
	Group    string            `json:"group" yaml:"group"`
	Location string            `json:"location" yaml:"location"`
	State    string            `json:"state,omitempty" yaml:"state,omitempty"`
	IP       string            `json:"ip,omitempty" yaml:"ip,omitempty"`
	FQDN     string            `json:"fqdn,omitempty" yaml:"fqdn,omitempty"`
	Image    string            `json:"image,omitempty" yaml:"image,omitempty"`
	Tags     map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// CreateContainerGroup provisions a single-container group with a
// public IP and a DNS label derived from the lab and container names.
func (p *Provisioner) CreateContainerGroup(ctx context.Context, lab *labspec.Lab, spec labspec.ContainerSpec) (*ContainerGroup, error) {
	client, err := p.clients.ContainerGroups()
	if err != nil {
		return nil, errors.Trace(err)
	}
	dnsLabel := fmt.Sprintf("%s-%s", lab.Name, spec.Name)
	port := int32(spec.Port)
	var created ContainerGroup
	if err := p.callARM(func() error {
		poller, err := client.BeginCreateOrUpdate(ctx, lab.GroupName(), spec.Name, armcontainerinstance.ContainerGroup{
			Location: to.Ptr(lab.Location),
			Tags:     toTagsPtr(lab.GroupTags()),
			Properties: &armcontainerinstance.ContainerGroupPropertiesProperties{
				OSType:        to.Ptr(armcontainerinstance.OperatingSystemTypesLinux),
				RestartPolicy: to.Ptr(armcontainerinstance.ContainerGroupRestartPolicyAlways),
				Containers: []*armcontainerinstance.Container{{
					Name: to.Ptr(spec.Name),
					Properties: &armcontainerinstance.ContainerProperties{
						Image: to.Ptr(spec.Image),
						Ports: []*armcontainerinstance.ContainerPort{{
							Port: to.Ptr(port),
						}},
						Resources: &armcontainerinstance.ResourceRequirements{
							Requests: &armcontainerinstance.ResourceRequests{
								CPU:        to.Ptr(float64(spec.CPUCores)),
								MemoryInGB: to.Ptr(spec.MemoryGB),
							},
						},
					},
				}},
				IPAddress: &armcontainerinstance.IPAddress{
					Type:         to.Ptr(armcontainerinstance.ContainerGroupIPAddressTypePublic),
					DNSNameLabel: to.Ptr(dnsLabel),
					Ports: []*armcontainerinstance.Port{{
						Port:     to.Ptr(port),
						Protocol: to.Ptr(armcontainerinstance.ContainerGroupNetworkProtocolTCP),
					}},
				},
			},
		}, nil)
		if err != nil {
			return err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return err
		}
		created = containerGroupInfo(lab.GroupName(), &resp.ContainerGroup)
		return nil
	}); err != nil {
		return nil, errors.Annotatef(err, "creating container group %q", spec.Name)
	}
	logger.Infof("container group %q running %q", spec.Name, spec.Image)
	return &created, nil
}

func containerGroupInfo(group string, cg *armcontainerinstance.ContainerGroup) ContainerGroup {
	info := ContainerGroup{
		Name:     toValue(cg.Name),
		Group:    group,
		Location: toValue(cg.Location),
		Tags:     toTags(cg.Tags),
	}
	if props := cg.Properties; props != nil {
		info.State = toValue(props.ProvisioningState)
		if props.IPAddress != nil {
			info.IP = toValue(props.IPAddress.IP)
			info.FQDN = toValue(props.IPAddress.Fqdn)
		}
		if len(props.Containers) > 0 && props.Containers[0].Properties != nil {
			info.Image = toValue(props.Containers[0].Properties.Image)
		}
	}
	return info
}

// ListContainerGroups lists the container groups in a resource group.
func (p *Provisioner) ListContainerGroups(ctx context.Context, group string) ([]ContainerGroup, error) {
	client, err := p.clients.ContainerGroups()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var groups []ContainerGroup
	pager := client.NewListByResourceGroupPager(group, nil)
	for pager.More() {
		next, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Annotatef(err, "listing container groups in %q", group)
		}
		for _, cg := range next.Value {
			groups = append(groups, containerGroupInfo(group, cg))
		}
	}
	return groups, nil
}

// ContainerLogs fetches the last tail lines of a container's log.
func (p *Provisioner) ContainerLogs(ctx context.Context, group, containerGroup, container string, tail int) (string, error) {
	client, err := p.clients.Containers()
	if err != nil {
		return "", errors.Trace(err)
	}
	var content string
	if err := p.callARM(func() error {
		opts := &armcontainerinstance.ContainersClientListLogsOptions{}
		if tail > 0 {
			opts.Tail = to.Ptr(int32(tail))
		}
		resp, err := client.ListLogs(ctx, group, containerGroup, container, opts)
		if err != nil {
			return err
		}
		content = toValue(resp.Content)
		return nil
	}); err != nil {
		return "", errors.Annotatef(err, "fetching logs for container %q", container)
	}
	return content, nil
}

// DeleteContainerGroup deletes a container group. Absence is tolerated.
func (p *Provisioner) DeleteContainerGroup(ctx context.Context, group, name string) error {
	client, err := p.clients.ContainerGroups()
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
		return errors.Annotatef(err, "deleting container group %q", name)
	}
	logger.Infof("deleted container group %q", name)
	return nil
}
