// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package provision_test

import (
	"context"
	"net/http"
	stdtesting "testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/azureclients"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/azuretesting"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/labspec"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/provision"
)

func Test(t *stdtesting.T) { gc.TestingT(t) }

const fakeSubscription = "22222222-2222-2222-2222-222222222222"

type provisionSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&provisionSuite{})

func (s *provisionSuite) newProvisioner(c *gc.C, sender policy.Transporter) *provision.Provisioner {
	clients, err := azureclients.New(azureclients.Config{
		SubscriptionID: fakeSubscription,
		Credential:     &azuretesting.FakeCredential{},
		Sender:         sender,
		Clock:          testclock.NewDilatedWallClock(10 * time.Millisecond),
	})
	c.Assert(err, jc.ErrorIsNil)
	return provision.NewProvisioner(clients)
}

func notFoundSender() *azuretesting.MockSender {
	sender := &azuretesting.MockSender{}
	body := azuretesting.NewBody(`{"error":{"code":"ResourceGroupNotFound","message":"gone"}}`)
	sender.AppendResponse(azuretesting.NewResponseWithBodyAndStatus(body, http.StatusNotFound, ""))
	return sender
}

func (s *provisionSuite) TestListLabGroups(c *gc.C) {
	sender := azuretesting.NewSenderWithValue(armresources.ResourceGroupListResult{
		Value: []*armresources.ResourceGroup{{
			Name:     to.Ptr("exam-prep-rg"),
			Location: to.Ptr("westeurope"),
			Tags: map[string]*string{
				labspec.LabTagKey: to.Ptr("exam-prep"),
				"owner":           to.Ptr("taylor"),
			},
		}},
	})
	provisioner := s.newProvisioner(c, sender)
	groups, err := provisioner.ListLabGroups(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(groups, jc.DeepEquals, []provision.Group{{
		Name:     "exam-prep-rg",
		Location: "westeurope",
		Lab:      "exam-prep",
		Tags: map[string]string{
			labspec.LabTagKey: "exam-prep",
			"owner":           "taylor",
		},
	}})
}

func (s *provisionSuite) TestEnsureGroupCreates(c *gc.C) {
	senders := azuretesting.NewSenders(
		// Existence check finds nothing, then the group is created.
		newStatusSender(http.StatusNotFound),
		azuretesting.NewSenderWithValue(armresources.ResourceGroup{
			Name: to.Ptr("exam-prep-rg"),
		}),
	)
	provisioner := s.newProvisioner(c, senders)
	created, err := provisioner.EnsureGroup(context.Background(), "exam-prep-rg", "westeurope", nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(created, jc.IsTrue)
}

func (s *provisionSuite) TestEnsureGroupExisting(c *gc.C) {
	senders := azuretesting.NewSenders(
		newStatusSender(http.StatusNoContent),
		azuretesting.NewSenderWithValue(armresources.ResourceGroup{
			Name: to.Ptr("exam-prep-rg"),
		}),
	)
	provisioner := s.newProvisioner(c, senders)
	created, err := provisioner.EnsureGroup(context.Background(), "exam-prep-rg", "westeurope", nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(created, jc.IsFalse)
}

func newStatusSender(code int) *azuretesting.MockSender {
	sender := &azuretesting.MockSender{}
	sender.AppendResponse(azuretesting.NewResponseWithStatus("", code))
	return sender
}

func (s *provisionSuite) TestBeginDeleteGroupAlreadyGone(c *gc.C) {
	provisioner := s.newProvisioner(c, notFoundSender())
	deletion, err := provisioner.BeginDeleteGroup(context.Background(), "exam-prep-rg")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(deletion.Wait(context.Background()), jc.ErrorIsNil)
}

func storageLab() *labspec.Lab {
	return &labspec.Lab{Name: "exam-prep", Location: "westeurope"}
}

func (s *provisionSuite) TestCreateStorageAccount(c *gc.C) {
	senders := azuretesting.NewSenders(
		azuretesting.NewSenderWithValue(armstorage.CheckNameAvailabilityResult{
			NameAvailable: to.Ptr(true),
		}),
		azuretesting.NewSenderWithValue(armstorage.Account{
			Name: to.Ptr("exampreplogs"),
		}),
	)
	provisioner := s.newProvisioner(c, senders)
	name, err := provisioner.CreateStorageAccount(context.Background(), storageLab(), labspec.StorageSpec{
		Prefix: "exampreplogs",
		SKU:    "Standard_LRS",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(name, gc.Equals, "exampreplogs")
}

func (s *provisionSuite) TestCreateStorageAccountNameTaken(c *gc.C) {
	senders := azuretesting.NewSenders(
		azuretesting.NewSenderWithValue(armstorage.CheckNameAvailabilityResult{
			NameAvailable: to.Ptr(false),
			Reason:        to.Ptr(armstorage.ReasonAlreadyExists),
		}),
		azuretesting.NewSenderWithValue(armstorage.CheckNameAvailabilityResult{
			NameAvailable: to.Ptr(true),
		}),
		azuretesting.NewSenderWithValue(armstorage.Account{}),
	)
	provisioner := s.newProvisioner(c, senders)
	name, err := provisioner.CreateStorageAccount(context.Background(), storageLab(), labspec.StorageSpec{
		Prefix: "exampreplogs",
		SKU:    "Standard_LRS",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(name, gc.Matches, `exampreplogs\d{4}`)
}

func (s *provisionSuite) TestCreateStorageAccountInvalidName(c *gc.C) {
	senders := azuretesting.NewSenders(
		azuretesting.NewSenderWithValue(armstorage.CheckNameAvailabilityResult{
			NameAvailable: to.Ptr(false),
			Reason:        to.Ptr(armstorage.ReasonAccountNameInvalid),
		}),
	)
	provisioner := s.newProvisioner(c, senders)
	_, err := provisioner.CreateStorageAccount(context.Background(), storageLab(), labspec.StorageSpec{
		Prefix: "exampreplogs",
		SKU:    "Standard_LRS",
	})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *provisionSuite) TestDeleteStorageAccountAlreadyGone(c *gc.C) {
	provisioner := s.newProvisioner(c, notFoundSender())
	err := provisioner.DeleteStorageAccount(context.Background(), "exam-prep-rg", "exampreplogs")
	c.Assert(err, jc.ErrorIsNil)
}

func (s *provisionSuite) TestListResources(c *gc.C) {
	sender := azuretesting.NewSenderWithValue(armresources.ResourceListResult{
		Value: []*armresources.GenericResourceExpanded{{
			Name:     to.Ptr("web-01"),
			Type:     to.Ptr("Microsoft.Compute/virtualMachines"),
			Location: to.Ptr("westeurope"),
			ID:       to.Ptr("/subscriptions/sub/resourceGroups/exam-prep-rg/providers/Microsoft.Compute/virtualMachines/web-01"),
		}},
	})
	provisioner := s.newProvisioner(c, sender)
	resources, err := provisioner.ListResources(context.Background(), "exam-prep-rg")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(resources, gc.HasLen, 1)
	c.Assert(resources[0].Name, gc.Equals, "web-01")
	c.Assert(resources[0].Group, gc.Equals, "exam-prep-rg")
}

func (s *provisionSuite) TestLocations(c *gc.C) {
	sender := azuretesting.NewSenderWithValue(armsubscriptions.LocationListResult{
		Value: []*armsubscriptions.Location{
			{Name: to.Ptr("eastus")},
			{Name: to.Ptr("westeurope")},
		},
	})
	provisioner := s.newProvisioner(c, sender)
	locations, err := provisioner.Locations(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(locations, jc.DeepEquals, []string{"eastus", "westeurope"})
}
