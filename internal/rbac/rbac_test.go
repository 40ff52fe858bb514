// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package rbac_test

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	stdtesting "testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v3"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	abstractions "github.com/microsoft/kiota-abstractions-go"
	"github.com/microsoft/kiota-abstractions-go/authentication"
	"github.com/microsoft/kiota-abstractions-go/serialization"
	nethttplibrary "github.com/microsoft/kiota-http-go"
	"github.com/microsoftgraph/msgraph-sdk-go/directoryobjects"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	gc "gopkg.in/check.v1"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/azureclients"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/azuretesting"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/labspec"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/rbac"
)

func Test(t *stdtesting.T) { gc.TestingT(t) }

const (
	fakeSubscription = "22222222-2222-2222-2222-222222222222"
	fakeTenant       = "11111111-1111-1111-1111-111111111111"
	fakeAssignmentID = "55555555-5555-5555-5555-555555555555"
)

type requestResult struct {
	PathPattern string
	Result      serialization.Parsable
	Err         error
}

// MockRequestAdaptor serves canned Graph results while delegating
// serialization plumbing to the real HTTP adapter.
type MockRequestAdaptor struct {
	*nethttplibrary.NetHttpRequestAdapter

	results []requestResult
}

func newMockRequestAdaptor(c *gc.C, results ...requestResult) *MockRequestAdaptor {
	adapter, err := nethttplibrary.NewNetHttpRequestAdapter(&authentication.AnonymousAuthenticationProvider{})
	c.Assert(err, jc.ErrorIsNil)
	return &MockRequestAdaptor{NetHttpRequestAdapter: adapter, results: results}
}

func (m *MockRequestAdaptor) Send(ctx context.Context, requestInfo *abstractions.RequestInformation, constructor serialization.ParsableFactory, errorMappings abstractions.ErrorMappings) (serialization.Parsable, error) {
	if len(m.results) == 0 {
		return nil, errors.Errorf("no results for %q", requestInfo.UrlTemplate)
	}
	res := m.results[0]
	m.results = m.results[1:]
	if res.PathPattern != "" {
		matched, err := regexp.MatchString(res.PathPattern, requestInfo.UrlTemplate)
		if err != nil {
			return nil, err
		}
		if !matched {
			return nil, fmt.Errorf(
				"request path %q did not match pattern %q",
				requestInfo.UrlTemplate, res.PathPattern,
			)
		}
	}
	return res.Result, res.Err
}

type rbacSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&rbacSuite{})

func (s *rbacSuite) newManager(c *gc.C, sender policy.Transporter, adaptor abstractions.RequestAdapter) *rbac.Manager {
	clients, err := azureclients.New(azureclients.Config{
		SubscriptionID: fakeSubscription,
		TenantID:       fakeTenant,
		Credential:     &azuretesting.FakeCredential{},
		Sender:         sender,
		GraphAdapter:   adaptor,
		Clock:          testclock.NewDilatedWallClock(10 * time.Millisecond),
	})
	c.Assert(err, jc.ErrorIsNil)
	return rbac.NewManagerWithUUIDs(clients, func() (uuid.UUID, error) {
		return uuid.Parse(fakeAssignmentID)
	})
}

func definitionID(guid string) string {
	return fmt.Sprintf("/subscriptions/%s/providers/Microsoft.Authorization/roleDefinitions/%s",
		fakeSubscription, guid)
}

func roleDefinitionListSender(name string) *azuretesting.MockSender {
	return azuretesting.NewSenderWithValue(armauthorization.RoleDefinitionListResult{
		Value: []*armauthorization.RoleDefinition{{
			ID:   to.Ptr(definitionID("def-1")),
			Name: to.Ptr("def-1"),
			Properties: &armauthorization.RoleDefinitionProperties{
				RoleName: to.Ptr(name),
				RoleType: to.Ptr("CustomRole"),
			},
		}},
	})
}

func errorSender(code string, statusCode int) *azuretesting.MockSender {
	sender := &azuretesting.MockSender{}
	body := azuretesting.NewBody(fmt.Sprintf(`{"error":{"code":%q,"message":"boom"}}`, code))
	sender.AppendResponse(azuretesting.NewResponseWithBodyAndStatus(body, statusCode, ""))
	return sender
}

func (s *rbacSuite) TestCreateAssignment(c *gc.C) {
	senders := azuretesting.NewSenders(
		roleDefinitionListSender("Lab Reader Plus"),
		azuretesting.NewSenderWithValue(armauthorization.RoleAssignment{}),
	)
	manager := s.newManager(c, senders, nil)
	err := manager.CreateAssignment(context.Background(), rbac.AssignmentParams{
		PrincipalID:   "user-1",
		PrincipalType: armauthorization.PrincipalTypeUser,
		RoleName:      "Lab Reader Plus",
		Scope:         manager.SubscriptionScope(),
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *rbacSuite) TestCreateAssignmentAlreadyExists(c *gc.C) {
	senders := azuretesting.NewSenders(
		roleDefinitionListSender("Lab Reader Plus"),
		errorSender("RoleAssignmentExists", http.StatusConflict),
	)
	manager := s.newManager(c, senders, nil)
	err := manager.CreateAssignment(context.Background(), rbac.AssignmentParams{
		PrincipalID:   "user-1",
		PrincipalType: armauthorization.PrincipalTypeUser,
		RoleName:      "Lab Reader Plus",
		Scope:         manager.SubscriptionScope(),
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *rbacSuite) TestCreateAssignmentRetriesUnreplicatedPrincipal(c *gc.C) {
	senders := azuretesting.NewSenders(
		roleDefinitionListSender("Lab Reader Plus"),
		errorSender("PrincipalNotFound", http.StatusNotFound),
		errorSender("PrincipalNotFound", http.StatusNotFound),
		azuretesting.NewSenderWithValue(armauthorization.RoleAssignment{}),
	)
	manager := s.newManager(c, senders, nil)
	err := manager.CreateAssignment(context.Background(), rbac.AssignmentParams{
		PrincipalID:   "user-1",
		PrincipalType: armauthorization.PrincipalTypeUser,
		RoleName:      "Lab Reader Plus",
		Scope:         manager.SubscriptionScope(),
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *rbacSuite) TestCreateAssignmentUnknownRole(c *gc.C) {
	senders := azuretesting.NewSenders(
		azuretesting.NewSenderWithValue(armauthorization.RoleDefinitionListResult{}),
	)
	manager := s.newManager(c, senders, nil)
	err := manager.CreateAssignment(context.Background(), rbac.AssignmentParams{
		PrincipalID: "user-1",
		RoleName:    "No Such Role",
		Scope:       manager.SubscriptionScope(),
	})
	c.Assert(err, jc.ErrorIs, errors.NotFound)
	c.Assert(err, gc.ErrorMatches, `role definition "No Such Role" not found`)
}

func (s *rbacSuite) TestEnsureCustomRoleReusesExistingID(c *gc.C) {
	senders := azuretesting.NewSenders(
		roleDefinitionListSender("Lab Reader Plus"),
		azuretesting.NewSenderWithValue(armauthorization.RoleDefinition{
			ID: to.Ptr(definitionID("def-1")),
		}),
	)
	clients, err := azureclients.New(azureclients.Config{
		SubscriptionID: fakeSubscription,
		Credential:     &azuretesting.FakeCredential{},
		Sender:         senders,
		Clock:          testclock.NewDilatedWallClock(10 * time.Millisecond),
	})
	c.Assert(err, jc.ErrorIsNil)
	manager := rbac.NewManagerWithUUIDs(clients, func() (uuid.UUID, error) {
		c.Fatal("no new identifier should be generated for an existing role")
		return uuid.UUID{}, nil
	})
	id, err := manager.EnsureCustomRole(context.Background(), &labspec.RoleSpec{
		Name:    "Lab Reader Plus",
		Actions: []string{"Microsoft.Resources/subscriptions/resourceGroups/read"},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(id, gc.Equals, definitionID("def-1"))
}

func (s *rbacSuite) TestDeleteCustomRoleRefusesBuiltIn(c *gc.C) {
	senders := azuretesting.NewSenders(
		azuretesting.NewSenderWithValue(armauthorization.RoleDefinitionListResult{
			Value: []*armauthorization.RoleDefinition{{
				ID:   to.Ptr(definitionID("reader")),
				Name: to.Ptr("reader"),
				Properties: &armauthorization.RoleDefinitionProperties{
					RoleName: to.Ptr("Reader"),
					RoleType: to.Ptr("BuiltInRole"),
				},
			}},
		}),
	)
	manager := s.newManager(c, senders, nil)
	err := manager.DeleteCustomRole(context.Background(), "Reader")
	c.Assert(err, gc.ErrorMatches, `role "Reader" is built-in and cannot be deleted`)
}

func (s *rbacSuite) TestDeleteCustomRoleRefusesWhileAssigned(c *gc.C) {
	senders := azuretesting.NewSenders(
		roleDefinitionListSender("Lab Reader Plus"),
		azuretesting.NewSenderWithValue(armauthorization.RoleAssignmentListResult{
			Value: []*armauthorization.RoleAssignment{{
				Properties: &armauthorization.RoleAssignmentProperties{
					PrincipalID:      to.Ptr("user-1"),
					RoleDefinitionID: to.Ptr(definitionID("def-1")),
				},
			}},
		}),
	)
	manager := s.newManager(c, senders, nil)
	err := manager.DeleteCustomRole(context.Background(), "Lab Reader Plus")
	c.Assert(err, gc.ErrorMatches, `cannot delete role "Lab Reader Plus": 1 role assignment\(s\) still reference it`)
}

func (s *rbacSuite) auditFixtures(c *gc.C) (policy.Transporter, *MockRequestAdaptor, time.Time) {
	createdOn := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	senders := azuretesting.NewSenders(
		// Every assignment visible at the subscription scope.
		azuretesting.NewSenderWithValue(armauthorization.RoleAssignmentListResult{
			Value: []*armauthorization.RoleAssignment{{
				Properties: &armauthorization.RoleAssignmentProperties{
					PrincipalID:      to.Ptr("user-1"),
					PrincipalType:    to.Ptr(armauthorization.PrincipalTypeUser),
					RoleDefinitionID: to.Ptr(definitionID("def-1")),
					Scope:            to.Ptr("/subscriptions/" + fakeSubscription),
					CreatedOn:        to.Ptr(createdOn),
					CreatedBy:        to.Ptr("admin-1"),
				},
			}, {
				Properties: &armauthorization.RoleAssignmentProperties{
					PrincipalID:      to.Ptr("gone-1"),
					PrincipalType:    to.Ptr(armauthorization.PrincipalTypeUser),
					RoleDefinitionID: to.Ptr(definitionID("def-2")),
					Scope:            to.Ptr("/subscriptions/" + fakeSubscription + "/resourceGroups/exam-prep-rg"),
				},
			}},
		}),
		// One definition fetch per distinct definition ID.
		azuretesting.NewSenderWithValue(armauthorization.RoleDefinition{
			ID:   to.Ptr(definitionID("def-1")),
			Name: to.Ptr("def-1"),
			Properties: &armauthorization.RoleDefinitionProperties{
				RoleName: to.Ptr("Reader"),
				RoleType: to.Ptr("BuiltInRole"),
			},
		}),
		azuretesting.NewSenderWithValue(armauthorization.RoleDefinition{
			ID:   to.Ptr(definitionID("def-2")),
			Name: to.Ptr("def-2"),
			Properties: &armauthorization.RoleDefinitionProperties{
				RoleName: to.Ptr("Lab Reader Plus"),
				RoleType: to.Ptr("CustomRole"),
			},
		}),
	)

	user := models.NewUser()
	user.SetId(to.Ptr("user-1"))
	user.SetDisplayName(to.Ptr("Taylor Reese"))
	user.SetUserPrincipalName(to.Ptr("taylor.reese@contoso.onmicrosoft.com"))
	resp := directoryobjects.NewGetByIdsPostResponse()
	resp.SetValue([]models.DirectoryObjectable{user})
	adaptor := newMockRequestAdaptor(c, requestResult{
		PathPattern: regexp.QuoteMeta("{+baseurl}/directoryObjects/getByIds"),
		Result:      resp,
	})
	return senders, adaptor, createdOn
}

func (s *rbacSuite) TestAudit(c *gc.C) {
	senders, adaptor, createdOn := s.auditFixtures(c)
	manager := s.newManager(c, senders, adaptor)
	audit, err := manager.Audit(context.Background(), manager.SubscriptionScope())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(audit.Scope, gc.Equals, "/subscriptions/"+fakeSubscription)

	// Rows are sorted by principal display name.
	c.Assert(audit.Rows, jc.DeepEquals, []rbac.AssignmentRow{{
		Principal:     "Taylor Reese",
		PrincipalID:   "user-1",
		PrincipalType: "User",
		UPN:           "taylor.reese@contoso.onmicrosoft.com",
		Role:          "Reader",
		RoleType:      "BuiltInRole",
		Scope:         "/subscriptions/" + fakeSubscription,
		ScopeLevel:    "subscription",
		CreatedOn:     createdOn,
		CreatedBy:     "admin-1",
	}, {
		Principal:     "gone-1",
		PrincipalID:   "gone-1",
		PrincipalType: "User",
		Role:          "Lab Reader Plus",
		RoleType:      "CustomRole",
		Scope:         "/subscriptions/" + fakeSubscription + "/resourceGroups/exam-prep-rg",
		ScopeLevel:    "resource-group",
		Orphaned:      true,
	}})

	c.Assert(audit.Summary.Total, gc.Equals, 2)
	c.Assert(audit.Summary.CustomRoles, gc.Equals, 1)
	c.Assert(audit.Summary.Orphaned, gc.Equals, 1)
	c.Assert(audit.Summary.ByRole, jc.DeepEquals, map[string]int{
		"Reader":          1,
		"Lab Reader Plus": 1,
	})
	c.Assert(audit.Summary.ByPrincipalType, jc.DeepEquals, map[string]int{"User": 2})
	c.Assert(audit.Summary.ByScopeLevel, jc.DeepEquals, map[string]int{
		"subscription":   1,
		"resource-group": 1,
	})
}

func (s *rbacSuite) TestAuditDirectoryUnavailable(c *gc.C) {
	senders, _, _ := s.auditFixtures(c)
	// The adaptor fails every Graph call; principal names cannot be
	// resolved, so nothing may be declared orphaned.
	adaptor := newMockRequestAdaptor(c)
	manager := s.newManager(c, senders, adaptor)
	audit, err := manager.Audit(context.Background(), manager.SubscriptionScope())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(audit.Rows, gc.HasLen, 2)
	for _, row := range audit.Rows {
		c.Check(row.Orphaned, jc.IsFalse)
		c.Check(row.Principal, gc.Equals, row.PrincipalID)
	}
	c.Assert(audit.Summary.Orphaned, gc.Equals, 0)
}
