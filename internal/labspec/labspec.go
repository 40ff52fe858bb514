// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package labspec defines the YAML manifest describing a practice lab:
// which resource group, VMs, storage accounts, container instances,
// directory users and custom role to stand up for an exam scenario.
package labspec

import (
	"os"
	"regexp"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v3"
)

const (
	// LabTagKey is stamped on every resource group the toolkit creates,
	// with the lab name as its value. Inventory and teardown use it to
	// find lab resources without guessing at names.
	LabTagKey = "az104-lab"

	// resourceNameLengthMax is the maximum length of resource group
	// names in Azure.
	resourceNameLengthMax = 80

	// storageNameLengthMax is the maximum length of a storage account
	// name; the toolkit reserves four characters for a numeric suffix
	// used to dodge global name collisions.
	storageNameLengthMax = 24
	storageSuffixLength  = 4
)

// Lab describes one practice environment.
type Lab struct {
	Name          string
	Location      string
	Tags          map[string]string
	AdminUsername string
	SSHPublicKey  string

	VMs             []VMSpec
	StorageAccounts []StorageSpec
	Containers      []ContainerSpec
	Users           []UserSpec
	Role            *RoleSpec
}

// VMSpec describes a virtual machine to provision.
type VMSpec struct {
	Name  string
	Size  string
	Image string
}

// StorageSpec describes a storage account to provision. Prefix is the
// desired name; a numeric suffix is appended when the name is taken.
type StorageSpec struct {
	Prefix string
	SKU    string
}

// ContainerSpec describes a container instance to provision.
type ContainerSpec struct {
	Name     string
	Image    string
	Port     int
	CPUCores int
	MemoryGB float64
}

// UserSpec describes a practice directory user.
type UserSpec struct {
	Name string
}

// RoleSpec describes a custom role definition scoped to the subscription.
type RoleSpec struct {
	Name        string
	Description string
	Actions     []string
	NotActions  []string
}

// GroupName returns the resource group name for the lab.
func (l *Lab) GroupName() string {
	return l.Name + "-rg"
}

// GroupTags returns the tags to stamp on the lab's resource group,
// always including the lab marker tag.
func (l *Lab) GroupTags() map[string]string {
	tags := make(map[string]string, len(l.Tags)+1)
	for k, v := range l.Tags {
		tags[k] = v
	}
	tags[LabTagKey] = l.Name
	return tags
}

var labChecker = schema.FieldMap(schema.Fields{
	"name":             schema.String(),
	"location":         schema.String(),
	"tags":             schema.StringMap(schema.String()),
	"admin-username":   schema.String(),
	"ssh-public-key":   schema.String(),
	"vms":              schema.List(vmChecker),
	"storage-accounts": schema.List(storageChecker),
	"containers":       schema.List(containerChecker),
	"users":            schema.List(userChecker),
	"role":             roleChecker,
}, schema.Defaults{
	"tags":             schema.Omit,
	"admin-username":   "labadmin",
	"ssh-public-key":   schema.Omit,
	"vms":              schema.Omit,
	"storage-accounts": schema.Omit,
	"containers":       schema.Omit,
	"users":            schema.Omit,
	"role":             schema.Omit,
})

var vmChecker = schema.FieldMap(schema.Fields{
	"name":  schema.String(),
	"size":  schema.String(),
	"image": schema.String(),
}, schema.Defaults{
	"size":  "Standard_B1s",
	"image": "ubuntu-22.04",
})

var storageChecker = schema.FieldMap(schema.Fields{
	"prefix": schema.String(),
	"sku":    schema.String(),
}, schema.Defaults{
	"sku": string(armstorage.SKUNameStandardLRS),
})

var containerChecker = schema.FieldMap(schema.Fields{
	"name":      schema.String(),
	"image":     schema.String(),
	"port":      schema.ForceInt(),
	"cpu":       schema.ForceInt(),
	"memory-gb": schema.Any(),
}, schema.Defaults{
	"port":      int64(80),
	"cpu":       int64(1),
	"memory-gb": 1.5,
})

var userChecker = schema.FieldMap(schema.Fields{
	"name": schema.String(),
}, nil)

var roleChecker = schema.FieldMap(schema.Fields{
	"name":        schema.String(),
	"description": schema.String(),
	"actions":     schema.List(schema.String()),
	"not-actions": schema.List(schema.String()),
}, schema.Defaults{
	"description": "",
	"not-actions": schema.Omit,
})

// Read loads and validates a lab manifest from path.
func Read(path string) (*Lab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	lab, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing lab manifest %q", path)
	}
	return lab, nil
}

// Parse parses and validates a lab manifest.
func Parse(data []byte) (*Lab, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Annotate(err, "unmarshalling manifest")
	}
	coerced, err := labChecker.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "validating manifest")
	}
	attrs := coerced.(map[string]interface{})

	lab := &Lab{
		Name:          attrs["name"].(string),
		Location:      canonicalLocation(attrs["location"].(string)),
		AdminUsername: attrs["admin-username"].(string),
	}
	if tags, ok := attrs["tags"].(map[string]interface{}); ok {
		lab.Tags = make(map[string]string, len(tags))
		for k, v := range tags {
			lab.Tags[k] = v.(string)
		}
	}
	if key, ok := attrs["ssh-public-key"].(string); ok {
		lab.SSHPublicKey = key
	}
	for _, item := range listOf(attrs["vms"]) {
		lab.VMs = append(lab.VMs, VMSpec{
			Name:  item["name"].(string),
			Size:  item["size"].(string),
			Image: item["image"].(string),
		})
	}
	for _, item := range listOf(attrs["storage-accounts"]) {
		lab.StorageAccounts = append(lab.StorageAccounts, StorageSpec{
			Prefix: item["prefix"].(string),
			SKU:    item["sku"].(string),
		})
	}
	for _, item := range listOf(attrs["containers"]) {
		lab.Containers = append(lab.Containers, ContainerSpec{
			Name:     item["name"].(string),
			Image:    item["image"].(string),
			Port:     item["port"].(int),
			CPUCores: item["cpu"].(int),
			MemoryGB: forceFloat(item["memory-gb"]),
		})
	}
	for _, item := range listOf(attrs["users"]) {
		lab.Users = append(lab.Users, UserSpec{Name: item["name"].(string)})
	}
	if roleAttrs, ok := attrs["role"].(map[string]interface{}); ok {
		role := &RoleSpec{
			Name:        roleAttrs["name"].(string),
			Description: roleAttrs["description"].(string),
		}
		for _, action := range roleAttrs["actions"].([]interface{}) {
			role.Actions = append(role.Actions, action.(string))
		}
		if notActions, ok := roleAttrs["not-actions"].([]interface{}); ok {
			for _, action := range notActions {
				role.NotActions = append(role.NotActions, action.(string))
			}
		}
		lab.Role = role
	}

	if err := lab.validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return lab, nil
}

func listOf(value interface{}) []map[string]interface{} {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	result := make([]map[string]interface{}, len(items))
	for i, item := range items {
		result[i] = item.(map[string]interface{})
	}
	return result
}

func forceFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

var (
	dnsLabelRE    = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)
	storageNameRE = regexp.MustCompile(`^[a-z0-9]+$`)
)

func (l *Lab) validate() error {
	if !dnsLabelRE.MatchString(l.Name) {
		return errors.NotValidf("lab name %q", l.Name)
	}
	if n := len(l.GroupName()); n > resourceNameLengthMax {
		return errors.Errorf("resource group name %q is too long, maximum is %d characters",
			l.GroupName(), resourceNameLengthMax)
	}
	if l.Location == "" {
		return errors.NotValidf("empty location")
	}
	for _, vm := range l.VMs {
		if vm.Name == "" {
			return errors.NotValidf("vm with empty name")
		}
		if vm.Size == "" {
			return errors.NotValidf("vm %q with empty size", vm.Name)
		}
	}
	for _, sa := range l.StorageAccounts {
		if !storageNameRE.MatchString(sa.Prefix) {
			return errors.NotValidf("storage account prefix %q", sa.Prefix)
		}
		if n := len(sa.Prefix); n < 3 || n > storageNameLengthMax-storageSuffixLength {
			return errors.Errorf(
				"storage account prefix %q must be between 3 and %d characters",
				sa.Prefix, storageNameLengthMax-storageSuffixLength)
		}
		if !isKnownStorageSKU(sa.SKU) {
			return errors.Errorf("invalid storage SKU %q, expected one of %q",
				sa.SKU, knownStorageSKUs())
		}
	}
	for _, container := range l.Containers {
		if !dnsLabelRE.MatchString(container.Name) || len(container.Name) > 63 {
			return errors.NotValidf("container name %q", container.Name)
		}
		if container.Image == "" {
			return errors.NotValidf("container %q with empty image", container.Name)
		}
		if container.Port < 1 || container.Port > 65535 {
			return errors.NotValidf("container %q port %d", container.Name, container.Port)
		}
	}
	for _, user := range l.Users {
		if strings.TrimSpace(user.Name) == "" {
			return errors.NotValidf("user with empty name")
		}
	}
	if l.Role != nil {
		if l.Role.Name == "" {
			return errors.NotValidf("role with empty name")
		}
		if len(l.Role.Actions) == 0 {
			return errors.NotValidf("role %q with no actions", l.Role.Name)
		}
	}
	return nil
}

// knownStorageSKUs returns the list of valid storage SKU names.
func knownStorageSKUs() (skus []string) {
	for _, name := range armstorage.PossibleSKUNameValues() {
		skus = append(skus, string(name))
	}
	return skus
}

func isKnownStorageSKU(n string) bool {
	for _, sku := range knownStorageSKUs() {
		if n == sku {
			return true
		}
	}
	return false
}

// canonicalLocation returns the canonicalized location string. This
// involves stripping whitespace and lowercasing: the ARM APIs do not
// support embedded whitespace, but the portal displays locations with
// it, and operators paste both.
func canonicalLocation(s string) string {
	return strings.ToLower(strings.Replace(s, " ", "", -1))
}
