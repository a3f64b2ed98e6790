// Package authz decides which role may perform which workflow action.
// Entity state checks live in the services package; this package only answers the role question.
package authz

import (
	_ "embed"
	"fmt"

	"research-grant-api/models"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/sirupsen/logrus"
)

type Object string

const (
	ObjectCall               Object = "call"
	ObjectProposal           Object = "proposal"
	ObjectReviewerAssignment Object = "reviewer_assignment"
	ObjectReview             Object = "review"
	ObjectBudgetRequest      Object = "budget_request"
	ObjectDashboard          Object = "dashboard"
)

type Action string

const (
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionSubmit   Action = "submit"
	ActionAssign   Action = "assign"
	ActionUnassign Action = "unassign"
	ActionDecide   Action = "decide"
	ActionRequest  Action = "request"
)

//go:embed model.conf
var modelText string

//go:embed policy.csv
var policyText string

// Authorizer evaluates the embedded role policy.
type Authorizer struct {
	enforcer *casbin.Enforcer
	logger   *logrus.Entry
}

// New builds an Authorizer from the embedded model and policy.
func New(logger *logrus.Logger) (*Authorizer, error) {
	return NewFromText(modelText, policyText, logger)
}

// NewFromText builds an Authorizer from an explicit model and CSV policy.
func NewFromText(modelConf, policy string, logger *logrus.Logger) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to parse model: %w", err)
	}

	enf, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policy))
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	if err := enf.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("authz: failed to load policies: %w", err)
	}

	var entry *logrus.Entry
	if logger != nil {
		entry = logger.WithField("component", "authz")
	} else {
		entry = logrus.WithField("component", "authz")
	}

	return &Authorizer{enforcer: enf, logger: entry}, nil
}

// Allowed reports whether role may perform action on object.
// Unknown roles are always denied.
func (a *Authorizer) Allowed(role models.Role, object Object, action Action) bool {
	if !role.Valid() {
		return false
	}

	ok, err := a.enforcer.Enforce(string(role), string(object), string(action))
	if err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"role":   role,
			"object": object,
			"action": action,
		}).Error("authz: enforce failed")
		return false
	}
	if !ok {
		a.logger.WithFields(logrus.Fields{
			"role":   role,
			"object": object,
			"action": action,
		}).Debug("authz denied request")
	}
	return ok
}

// Permissions lists every object/action pair granted to role, including inherited ones.
func (a *Authorizer) Permissions(role models.Role) [][2]string {
	perms, err := a.enforcer.GetImplicitPermissionsForUser(string(role))
	if err != nil {
		return nil
	}
	out := make([][2]string, 0, len(perms))
	for _, p := range perms {
		if len(p) < 3 {
			continue
		}
		out = append(out, [2]string{p[1], p[2]})
	}
	return out
}
