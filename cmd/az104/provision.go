// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/directory"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/labspec"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/rbac"
)

var provisionDoc = `
Provision reads a lab manifest and stands up the environment it
describes: a tagged resource group containing the declared virtual
machines, storage accounts and container instances, plus any practice
users and custom role.

When the manifest declares users, --domain (or $AZ104_USER_DOMAIN)
supplies the UPN domain. Generated credentials are printed once and not
stored anywhere.

Example manifest:

    name: exam-prep
    location: westeurope
    vms:
      - name: web-01
        size: Standard_B2s
    storage-accounts:
      - prefix: exampreplogs
    users:
      - name: Taylor Reese
    role:
      name: Lab Reader Plus
      actions:
        - Microsoft.Resources/subscriptions/resourceGroups/read
        - Microsoft.Compute/virtualMachines/read
`

type provisionCommand struct {
	azureCommand
	manifestPath string
	userDomain   string
	assumeYes    bool
}

func (c *provisionCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "provision",
		Purpose: "Provision a practice lab from a manifest",
		Doc:     provisionDoc,
	}
}

func (c *provisionCommand) SetFlags(f *gnuflag.FlagSet) {
	c.azureCommand.SetFlags(f)
	f.StringVar(&c.manifestPath, "f", "lab.yaml", "Path to the lab manifest")
	f.StringVar(&c.manifestPath, "file", "lab.yaml", "")
	f.StringVar(&c.userDomain, "domain", "", "UPN domain for practice users (defaults to $AZ104_USER_DOMAIN)")
	f.BoolVar(&c.assumeYes, "y", false, "Do not ask for confirmation")
	f.BoolVar(&c.assumeYes, "yes", false, "")
}

func (c *provisionCommand) Run(ctx *cmd.Context) error {
	lab, err := labspec.Read(ctx.AbsPath(c.manifestPath))
	if err != nil {
		return errors.Trace(err)
	}
	domain := c.userDomain
	if domain == "" {
		domain = firstEnv("AZ104_USER_DOMAIN")
	}
	if len(lab.Users) > 0 && domain == "" {
		return errors.New("manifest declares users, use --domain or set AZ104_USER_DOMAIN")
	}
	if !c.assumeYes {
		if err := cmd.Confirm(ctx, fmt.Sprintf(
			"Provision lab %q as resource group %q in %s?",
			lab.Name, lab.GroupName(), lab.Location)); err != nil {
			return errors.Trace(err)
		}
	}
	clients, err := c.newClients()
	if err != nil {
		return errors.Trace(err)
	}
	provisioner := provision.NewProvisioner(clients)
	stdCtx := ctx.Context()

	created, err := provisioner.EnsureGroup(stdCtx, lab.GroupName(), lab.Location, lab.GroupTags())
	if err != nil {
		return errors.Trace(err)
	}
	if created {
		ctx.Infof("created resource group %s", lab.GroupName())
	} else {
		ctx.Infof("resource group %s already exists, reusing it", lab.GroupName())
	}

	var subnetID string
	if len(lab.VMs) > 0 {
		subnetID, err = provisioner.EnsureNetwork(stdCtx, lab.GroupName(), lab.Location)
		if err != nil {
			return errors.Trace(err)
		}
	}
	for _, spec := range lab.VMs {
		result, err := provisioner.CreateVM(stdCtx, lab, spec, subnetID)
		if err != nil {
			return errors.Trace(err)
		}
		ctx.Infof("vm %s ready", result.Name)
		if result.AdminPassword != "" {
			fmt.Fprintf(ctx.Stdout, "%s admin password: %s\n", result.Name, result.AdminPassword)
		}
	}
	for _, spec := range lab.StorageAccounts {
		name, err := provisioner.CreateStorageAccount(stdCtx, lab, spec)
		if err != nil {
			return errors.Trace(err)
		}
		ctx.Infof("storage account %s ready", name)
	}
	for _, spec := range lab.Containers {
		group, err := provisioner.CreateContainerGroup(stdCtx, lab, spec)
		if err != nil {
			return errors.Trace(err)
		}
		if group.FQDN != "" {
			ctx.Infof("container %s ready at %s", group.Name, group.FQDN)
		} else {
			ctx.Infof("container %s ready", group.Name)
		}
	}

	manager := rbac.NewManager(clients)
	var roleName string
	if lab.Role != nil {
		if _, err := manager.EnsureCustomRole(stdCtx, lab.Role); err != nil {
			return errors.Trace(err)
		}
		roleName = lab.Role.Name
		ctx.Infof("custom role %q ready", roleName)
	}
	if len(lab.Users) > 0 {
		users := directory.NewManager(clients)
		for _, spec := range lab.Users {
			user, initialPassword, err := users.CreateUser(stdCtx, spec.Name, domain)
			if err != nil {
				return errors.Trace(err)
			}
			fmt.Fprintf(ctx.Stdout, "%s initial password: %s\n", user.UPN, initialPassword)
			if roleName != "" {
				if err := manager.CreateAssignment(stdCtx, rbac.AssignmentParams{
					PrincipalID:   user.ID,
					PrincipalType: armauthorization.PrincipalTypeUser,
					RoleName:      roleName,
					Scope:         manager.GroupScope(lab.GroupName()),
				}); err != nil {
					return errors.Trace(err)
				}
			}
		}
	}
	ctx.Infof("lab %q ready", lab.Name)
	return nil
}
