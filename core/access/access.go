// Package access decides whether a principal may perform an action on a
// named resource. The decision is an ordered rule chain; the first rule
// that fires ends the evaluation.
package access

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/artpar/recordbase/core/schema"
	"github.com/artpar/recordbase/domain/user"
	"github.com/artpar/recordbase/pkg/apierror"
)

// SchemaLookup resolves a resource name to its schema, or nil for unknown
// resources. Satisfied by the resource registry.
type SchemaLookup interface {
	SchemaOf(name string) *schema.Schema
}

// Evaluator applies the access rule chain.
type Evaluator struct {
	schemas SchemaLookup
	logger  zerolog.Logger

	// disableAuth skips every check. Test configurations only.
	disableAuth bool
}

// New returns an evaluator backed by the given schema lookup.
func New(schemas SchemaLookup, logger zerolog.Logger, disableAuth bool) *Evaluator {
	return &Evaluator{
		schemas:     schemas,
		logger:      logger.With().Str("component", "access").Logger(),
		disableAuth: disableAuth,
	}
}

// Check evaluates the rule chain for u performing action on the named
// resource. A nil return means allowed. The rules, in order:
//
//  1. authentication disabled: allow
//  2. no principal: 401
//  3. admin group member: allow
//  4. system resource (leading underscore) and non-admin: 403
//  5. schema group grant for any of the principal's groups: allow
//  6. principal's own permission map (wildcard or exact name): allow
//  7. default: 403
func (e *Evaluator) Check(u *user.User, action schema.Action, resourceName string) error {
	if e.disableAuth {
		return nil
	}
	if u == nil {
		return apierror.ErrUnauthorized
	}
	if u.IsAdmin() {
		return nil
	}
	if IsSystemResource(resourceName) {
		e.logger.Debug().
			Str("user", u.Username).
			Str("resource", resourceName).
			Msg("system resource denied to non-admin")
		return apierror.ErrForbidden
	}
	if s := e.schemas.SchemaOf(resourceName); s != nil && s.UserIsAllowed(u.Groups, action) {
		return nil
	}
	if u.Allowed(string(action), resourceName) {
		return nil
	}
	e.logger.Debug().
		Str("user", u.Username).
		Str("action", string(action)).
		Str("resource", resourceName).
		Msg("access denied")
	return apierror.ErrForbidden
}

// IsSystemResource reports whether the name denotes an internal collection
// (users, groups, task locks) reserved for admins.
func IsSystemResource(name string) bool {
	return strings.HasPrefix(name, "_")
}
