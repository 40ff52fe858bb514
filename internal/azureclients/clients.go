// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package azureclients constructs the Azure Resource Manager and
// Microsoft Graph clients the toolkit's commands work against. Clients
// share one credential and one set of ARM client options, so a test can
// swap the transport or the Graph request adapter in one place.
package azureclients

import (
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v3"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerinstance/armcontainerinstance/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/juju/clock"
	"github.com/juju/errors"
	abstractions "github.com/microsoft/kiota-abstractions-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
)

// graphScope is the scope requested for all Microsoft Graph calls.
const graphScope = "https://graph.microsoft.com/.default"

// Config holds what is needed to construct the toolkit's Azure clients.
type Config struct {
	// SubscriptionID is the target subscription.
	SubscriptionID string

	// TenantID is the Entra ID tenant the subscription trusts.
	TenantID string

	// Credential authenticates ARM and Graph requests.
	Credential azcore.TokenCredential

	// Sender, if non-nil, replaces the HTTP transport used by ARM
	// clients. Tests use this to serve canned responses.
	Sender policy.Transporter

	// GraphAdapter, if non-nil, replaces the Graph request adapter.
	GraphAdapter abstractions.RequestAdapter

	// Clock is used when retrying rate-limited API calls.
	Clock clock.Clock
}

// Validate checks the configuration for completeness.
func (cfg Config) Validate() error {
	if cfg.SubscriptionID == "" {
		return errors.NotValidf("empty SubscriptionID")
	}
	if cfg.Credential == nil {
		return errors.NotValidf("nil Credential")
	}
	if cfg.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Clients is a lazy factory for the ARM and Graph clients.
type Clients struct {
	config     Config
	armOptions *arm.ClientOptions
}

// New returns a Clients factory for the given configuration.
func New(cfg Config) (*Clients, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Annotate(err, "validating client configuration")
	}
	options := &arm.ClientOptions{}
	if cfg.Sender != nil {
		options.ClientOptions.Transport = cfg.Sender
	}
	return &Clients{config: cfg, armOptions: options}, nil
}

// SubscriptionID returns the subscription the clients operate on.
func (c *Clients) SubscriptionID() string {
	return c.config.SubscriptionID
}

// Clock returns the clock used for API retry backoff.
func (c *Clients) Clock() clock.Clock {
	return c.config.Clock
}

// ResourceGroups returns a resource groups client.
func (c *Clients) ResourceGroups() (*armresources.ResourceGroupsClient, error) {
	client, err := armresources.NewResourceGroupsClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// Resources returns a generic resources client.
func (c *Clients) Resources() (*armresources.Client, error) {
	client, err := armresources.NewClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// Tags returns a tags client.
func (c *Clients) Tags() (*armresources.TagsClient, error) {
	client, err := armresources.NewTagsClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// Subscriptions returns a subscriptions client.
func (c *Clients) Subscriptions() (*armsubscriptions.Client, error) {
	client, err := armsubscriptions.NewClient(c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// StorageAccounts returns a storage accounts client.
func (c *Clients) StorageAccounts() (*armstorage.AccountsClient, error) {
	client, err := armstorage.NewAccountsClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// VirtualMachines returns a virtual machines client.
func (c *Clients) VirtualMachines() (*armcompute.VirtualMachinesClient, error) {
	client, err := armcompute.NewVirtualMachinesClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// VirtualNetworks returns a virtual networks client.
func (c *Clients) VirtualNetworks() (*armnetwork.VirtualNetworksClient, error) {
	client, err := armnetwork.NewVirtualNetworksClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// Interfaces returns a network interfaces client.
func (c *Clients) Interfaces() (*armnetwork.InterfacesClient, error) {
	client, err := armnetwork.NewInterfacesClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// PublicIPAddresses returns a public IP addresses client.
func (c *Clients) PublicIPAddresses() (*armnetwork.PublicIPAddressesClient, error) {
	client, err := armnetwork.NewPublicIPAddressesClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// SecurityGroups returns a network security groups client.
func (c *Clients) SecurityGroups() (*armnetwork.SecurityGroupsClient, error) {
	client, err := armnetwork.NewSecurityGroupsClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// ContainerGroups returns a container groups client.
func (c *Clients) ContainerGroups() (*armcontainerinstance.ContainerGroupsClient, error) {
	client, err := armcontainerinstance.NewContainerGroupsClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// Containers returns a containers client, used for log retrieval.
func (c *Clients) Containers() (*armcontainerinstance.ContainersClient, error) {
	client, err := armcontainerinstance.NewContainersClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// RoleDefinitions returns a role definitions client.
func (c *Clients) RoleDefinitions() (*armauthorization.RoleDefinitionsClient, error) {
	client, err := armauthorization.NewRoleDefinitionsClient(c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// RoleAssignments returns a role assignments client.
func (c *Clients) RoleAssignments() (*armauthorization.RoleAssignmentsClient, error) {
	client, err := armauthorization.NewRoleAssignmentsClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// Metrics returns a monitor metrics client.
func (c *Clients) Metrics() (*armmonitor.MetricsClient, error) {
	client, err := armmonitor.NewMetricsClient(c.config.SubscriptionID, c.config.Credential, c.armOptions)
	return client, errors.Trace(err)
}

// Graph returns a Microsoft Graph service client.
func (c *Clients) Graph() (*msgraphsdk.GraphServiceClient, error) {
	if c.config.GraphAdapter != nil {
		return msgraphsdk.NewGraphServiceClient(c.config.GraphAdapter), nil
	}
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(c.config.Credential, []string{graphScope})
	return client, errors.Trace(err)
}

// NewCredential returns a client secret credential when the full client
// credential triple is supplied, and otherwise falls back to the default
// Azure credential chain (environment, managed identity, az CLI).
func NewCredential(tenantID, clientID, clientSecret string) (azcore.TokenCredential, error) {
	if tenantID != "" && clientID != "" && clientSecret != "" {
		cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
		return cred, errors.Trace(err)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	return cred, errors.Trace(err)
}
