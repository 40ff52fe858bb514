// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package directory manages practice users in the Entra ID tenant
// through the Microsoft Graph API.
package directory

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/johnnymeintel/AZ104admintoolkit/internal/azureclients"
	"github.com/johnnymeintel/AZ104admintoolkit/internal/password"
)

var logger = loggo.GetLogger("az104.directory")

// Manager performs directory user operations.
type Manager struct {
	clients *azureclients.Clients
}

// NewManager returns a Manager using the given clients.
func NewManager(clients *azureclients.Clients) *Manager {
	return &Manager{clients: clients}
}

// User describes a directory user.
type User struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display-name" yaml:"display-name"`
	UPN         string `json:"upn" yaml:"upn"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
}

// MailNickname derives the mail nickname from a display name: lowercase,
// spaces become dots, everything else non-alphanumeric dropped.
func MailNickname(displayName string) string {
	var sb strings.Builder
	lastDot := true
	for _, r := range strings.ToLower(strings.TrimSpace(displayName)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastDot = false
		case unicode.IsSpace(r) && !lastDot:
			sb.WriteRune('.')
			lastDot = true
		}
	}
	return strings.TrimSuffix(sb.String(), ".")
}

// UserPrincipalName builds the UPN for a display name under a domain.
func UserPrincipalName(displayName, domain string) string {
	return fmt.Sprintf("%s@%s", MailNickname(displayName), domain)
}

// CreateUser creates an enabled directory user with a generated initial
// password that must be changed at first sign-in. The password is
// returned for one-time display and never stored.
func (m *Manager) CreateUser(ctx context.Context, displayName, domain string) (*User, string, error) {
	graph, err := m.clients.Graph()
	if err != nil {
		return nil, "", errors.Trace(err)
	}
	nickname := MailNickname(displayName)
	if nickname == "" {
		return nil, "", errors.NotValidf("display name %q", displayName)
	}
	initialPassword := password.Generate()

	user := models.NewUser()
	user.SetAccountEnabled(to.Ptr(true))
	user.SetDisplayName(to.Ptr(displayName))
	user.SetMailNickname(to.Ptr(nickname))
	user.SetUserPrincipalName(to.Ptr(fmt.Sprintf("%s@%s", nickname, domain)))
	profile := models.NewPasswordProfile()
	profile.SetPassword(to.Ptr(initialPassword))
	profile.SetForceChangePasswordNextSignIn(to.Ptr(true))
	user.SetPasswordProfile(profile)

	created, err := graph.Users().Post(ctx, user, nil)
	if err != nil {
		return nil, "", errors.Annotatef(err, "creating user %q (%s)", displayName, GraphErrorCode(err))
	}
	result := userInfo(created)
	logger.Infof("created user %q (%s)", result.DisplayName, result.UPN)
	return &result, initialPassword, nil
}

// ListUsers lists directory users whose UPN starts with the given
// prefix; an empty prefix lists every user. Graph pages its results, so
// the @odata.nextLink chain is followed to the end.
func (m *Manager) ListUsers(ctx context.Context, upnPrefix string) ([]User, error) {
	graph, err := m.clients.Graph()
	if err != nil {
		return nil, errors.Trace(err)
	}
	params := &users.UsersRequestBuilderGetQueryParameters{
		Select: []string{"id", "displayName", "userPrincipalName", "accountEnabled"},
	}
	if upnPrefix != "" {
		params.Filter = to.Ptr(fmt.Sprintf("startswith(userPrincipalName,'%s')", upnPrefix))
	}
	resp, err := graph.Users().Get(ctx, &users.UsersRequestBuilderGetRequestConfiguration{
		QueryParameters: params,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "listing users (%s)", GraphErrorCode(err))
	}
	iterator, err := msgraphcore.NewPageIterator[models.Userable](
		resp, graph.GetAdapter(), models.CreateUserCollectionResponseFromDiscriminatorValue)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var result []User
	if err := iterator.Iterate(ctx, func(user models.Userable) bool {
		result = append(result, userInfo(user))
		return true
	}); err != nil {
		return nil, errors.Annotatef(err, "listing users (%s)", GraphErrorCode(err))
	}
	return result, nil
}

// DeleteUser deletes a directory user by object ID or UPN. A user that
// is already gone is not an error.
func (m *Manager) DeleteUser(ctx context.Context, id string) error {
	graph, err := m.clients.Graph()
	if err != nil {
		return errors.Trace(err)
	}
	if err := graph.Users().ByUserId(id).Delete(ctx, nil); err != nil {
		if GraphErrorCode(err) == "Request_ResourceNotFound" {
			logger.Debugf("user %q already deleted", id)
			return nil
		}
		return errors.Annotatef(err, "deleting user %q", id)
	}
	logger.Infof("deleted user %q", id)
	return nil
}

func userInfo(user models.Userable) User {
	info := User{}
	if v := user.GetId(); v != nil {
		info.ID = *v
	}
	if v := user.GetDisplayName(); v != nil {
		info.DisplayName = *v
	}
	if v := user.GetUserPrincipalName(); v != nil {
		info.UPN = *v
	}
	if v := user.GetAccountEnabled(); v != nil {
		info.Enabled = *v
	}
	return info
}

// GraphErrorCode extracts the OData error code from a Graph API error,
// or returns the empty string.
func GraphErrorCode(err error) string {
	var odataErr *odataerrors.ODataError
	if stderrors.As(err, &odataErr) {
		if mainErr := odataErr.GetErrorEscaped(); mainErr != nil {
			if code := mainErr.GetCode(); code != nil {
				return *code
			}
		}
	}
	return ""
}
