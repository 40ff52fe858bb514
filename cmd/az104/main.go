// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

// az104 provisions, inventories, audits and tears down Azure practice
// labs for certification study.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/juju/loggo/v2"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/cmd"
)

const version = "1.2.0"

var doc = `
az104 manages short-lived Azure practice environments. A lab is declared
in a YAML manifest and provisioned into a tagged resource group; the
inventory, audit-rbac and rightsize commands report on what is running,
and teardown deletes whole labs at once.

Credentials come from the standard AZURE_* environment variables, or
from whatever the default Azure credential chain can find (environment,
managed identity, az CLI login).
`

func main() {
	if config := os.Getenv("AZ104_LOGGING_CONFIG"); config != "" {
		if err := loggo.ConfigureLoggers(config); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
			os.Exit(2)
		}
	}
	ctx, err := cmd.DefaultContext(context.Background(), ".", os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		os.Exit(2)
	}
	os.Exit(cmd.Main(newSuperCommand(), ctx, os.Args[1:]))
}

func newSuperCommand() *cmd.SuperCommand {
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "az104",
		Purpose: "Provision and audit Azure practice labs",
		Doc:     doc,
		Version: version,
	})
	super.Register(&provisionCommand{})
	super.Register(&teardownCommand{})
	super.Register(&groupsCommand{})
	super.Register(&inventoryCommand{})
	super.Register(&auditCommand{})
	super.Register(&rightsizeCommand{})
	super.Register(&addUserCommand{})
	super.Register(&listUsersCommand{})
	super.Register(&removeUserCommand{})
	super.Register(&createRoleCommand{})
	super.Register(&listRolesCommand{})
	super.Register(&deleteRoleCommand{})
	super.Register(&assignRoleCommand{})
	super.Register(&startVMCommand{})
	super.Register(&stopVMCommand{})
	super.Register(&logsCommand{})
	super.Register(&keysCommand{})
	super.Register(&tagCommand{})
	super.Register(&locationsCommand{})
	return super
}
