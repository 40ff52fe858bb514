// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/azureclients"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
)

// azureCommand is embedded by every subcommand that talks to Azure. It
// carries the flags selecting the subscription and tenant, falling back
// to the standard environment variables.
type azureCommand struct {
	cmd.CommandBase
	subscriptionID string
	tenantID       string
}

func (c *azureCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.subscriptionID, "subscription", "", "Subscription ID (defaults to $AZURE_SUBSCRIPTION_ID)")
	f.StringVar(&c.tenantID, "tenant", "", "Tenant ID (defaults to $AZURE_TENANT_ID)")
}

func (c *azureCommand) newClients() (*azureclients.Clients, error) {
	subscriptionID := c.subscriptionID
	if subscriptionID == "" {
		subscriptionID = firstEnv("AZ104_SUBSCRIPTION_ID", "AZURE_SUBSCRIPTION_ID")
	}
	if subscriptionID == "" {
		return nil, errors.New("no subscription specified, use --subscription or set AZURE_SUBSCRIPTION_ID")
	}
	tenantID := c.tenantID
	if tenantID == "" {
		tenantID = firstEnv("AZ104_TENANT_ID", "AZURE_TENANT_ID")
	}
	credential, err := azureclients.NewCredential(
		tenantID, os.Getenv("AZURE_CLIENT_ID"), os.Getenv("AZURE_CLIENT_SECRET"))
	if err != nil {
		return nil, errors.Annotate(err, "constructing credential")
	}
	clients, err := azureclients.New(azureclients.Config{
		SubscriptionID: subscriptionID,
		TenantID:       tenantID,
		Credential:     credential,
		Clock:          clock.WallClock,
	})
	return clients, errors.Trace(err)
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return ""
}
