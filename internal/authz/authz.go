// Package authz is the single authorization policy for guarded endpoints.
// Policies live in a casbin RBAC model built in code: roles are subjects,
// resources are objects. Handlers never check roles themselves; routes
// attach Require, and listing endpoints ask Allowed for informational flags.
package authz

import (
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/apperror"
	"github.com/keyxmakerx/healthcore/internal/plugins/auth"
)

// Resources.
const (
	ResourceEmailAccount  = "email_account"
	ResourceCommunication = "communication"
)

// Actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionCreate = "create"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// defaultPolicies grants System Manager everything this service guards.
var defaultPolicies = [][]string{
	{auth.RoleSystemManager, ResourceEmailAccount, ActionRead},
	{auth.RoleSystemManager, ResourceEmailAccount, ActionWrite},
	{auth.RoleSystemManager, ResourceCommunication, ActionCreate},
	{auth.RoleSystemManager, ResourceCommunication, ActionRead},
}

// defaultGroupings makes Administrator inherit System Manager.
var defaultGroupings = [][]string{
	{auth.RoleAdministrator, auth.RoleSystemManager},
}

// denialMessages are the client-facing reasons per resource/action.
var denialMessages = map[string]string{
	ResourceEmailAccount + ":" + ActionRead:    "You don't have permission to view email account settings",
	ResourceEmailAccount + ":" + ActionWrite:   "You don't have permission to modify email account settings",
	ResourceCommunication + ":" + ActionCreate: "You don't have permission to send emails",
	ResourceCommunication + ":" + ActionRead:   "You don't have permission to view communications",
}

// Policy answers "may these roles do action on resource".
type Policy struct {
	enforcer *casbin.Enforcer
}

// New builds the policy with the default grants.
func New() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("parsing rbac model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("creating enforcer: %w", err)
	}

	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("adding policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(defaultGroupings); err != nil {
		return nil, fmt.Errorf("adding role groupings: %w", err)
	}

	return &Policy{enforcer: e}, nil
}

// Allowed reports whether any of roles grants action on resource.
// Enforcement errors deny.
func (p *Policy) Allowed(roles []string, resource, action string) bool {
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, resource, action)
		if err != nil {
			slog.Error("authorization check failed",
				slog.String("role", role),
				slog.String("resource", resource),
				slog.String("action", action),
				slog.Any("error", err),
			)
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

// Require returns middleware that rejects the request with 403 unless the
// session's roles grant action on resource. Must run after auth.RequireAuth.
func (p *Policy) Require(resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := auth.GetSession(c)
			if session == nil {
				return apperror.NewUnauthorized("authentication required")
			}
			if !p.Allowed(session.Roles, resource, action) {
				slog.Warn("permission denied",
					slog.String("user_id", session.UserID),
					slog.String("resource", resource),
					slog.String("action", action),
				)
				return apperror.NewForbidden(DenialMessage(resource, action))
			}
			return next(c)
		}
	}
}

// DenialMessage returns the client-facing reason for a denied check.
func DenialMessage(resource, action string) string {
	if msg, ok := denialMessages[resource+":"+action]; ok {
		return msg
	}
	return "You don't have permission to perform this action"
}
