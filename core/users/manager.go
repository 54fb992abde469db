// Package users manages the account and group resources, credential
// verification and session tokens. Accounts live in the _users collection
// and groups in _groups, both regular resources with their semantics
// enforced through schema hooks.
package users

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/artpar/recordbase/core/resource"
	"github.com/artpar/recordbase/core/schema"
	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
	"github.com/artpar/recordbase/domain/user"
	"github.com/artpar/recordbase/pkg/apierror"
	"github.com/artpar/recordbase/ports"
)

// Collection names for the account and group resources.
const (
	UsersCollection  = "_users"
	GroupsCollection = "_groups"
)

// RawRecordsKey is the context value that disables credential stripping on
// reads. Only the manager's own lookups set it.
const RawRecordsKey = "rawRecords"

// Manager owns the account and group resources.
type Manager struct {
	users  *resource.Resource
	groups *resource.Resource
	tokens *TokenService
	hasher ports.Hasher
	logger zerolog.Logger
}

// New registers the _users and _groups resources on the registry, wires
// their hooks and seeds the built-in groups. Seeding is idempotent, so
// restarting against an existing store is safe.
func New(ctx context.Context, reg *resource.Registry, tokens *TokenService, hasher ports.Hasher, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{
		tokens: tokens,
		hasher: hasher,
		logger: logger.With().Str("component", "users").Logger(),
	}

	usersSchema := schema.MustNew(schema.Fields{
		"username":    {Type: schema.FieldTypeText, Required: true, Unique: true},
		"password":    {Type: schema.FieldTypePassword},
		"hash":        {Type: schema.FieldTypeText},
		"provider":    {Type: schema.FieldTypeText, Default: "local"},
		"userData":    {Type: schema.FieldTypeObject},
		"groups":      {Type: schema.FieldTypeArray, Items: &schema.Field{Type: schema.FieldTypeText}},
		"permissions": {Type: schema.FieldTypeMap, Items: &schema.Field{Type: schema.FieldTypeArray, Items: &schema.Field{Type: schema.FieldTypeText}}},
	}).AllowAdditionalProperties()
	usersSchema.Before(schema.EventSave, m.hashPassword)
	usersSchema.Before(schema.EventSave, m.checkGroupsExist)
	usersSchema.After(schema.EventRead, m.stripCredentials)

	groupsSchema := schema.MustNew(schema.Fields{
		"name":        {Type: schema.FieldTypeText, Required: true, Unique: true},
		"permissions": {Type: schema.FieldTypeMap, Items: &schema.Field{Type: schema.FieldTypeArray, Items: &schema.Field{Type: schema.FieldTypeText}}},
	})
	groupsSchema.Before(schema.EventRemove, m.protectBuiltinGroups)

	var err error
	if m.users, err = reg.Register(ctx, UsersCollection, usersSchema); err != nil {
		return nil, err
	}
	if m.groups, err = reg.Register(ctx, GroupsCollection, groupsSchema); err != nil {
		return nil, err
	}

	if err := m.seedGroups(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Users returns the account resource.
func (m *Manager) Users() *resource.Resource {
	return m.users
}

// Groups returns the group resource.
func (m *Manager) Groups() *resource.Resource {
	return m.groups
}

// Tokens returns the session token service.
func (m *Manager) Tokens() *TokenService {
	return m.tokens
}

// rawContext bypasses credential stripping for the manager's own reads.
func rawContext() *schema.Context {
	return &schema.Context{Values: map[string]any{RawRecordsKey: true}}
}

func (m *Manager) rawUsers() *resource.Resource {
	return m.users.WithContext(rawContext())
}

// Create registers a new account. A taken username is a 409.
func (m *Manager) Create(ctx context.Context, username, password string, groups []string) (*user.User, error) {
	if username == "" || password == "" {
		return nil, apierror.BadRequest("username and password are required")
	}

	existing, err := m.rawUsers().FindOne(ctx, query.Query{"username": username})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierror.ErrUsernameTaken
	}

	if groups == nil {
		groups = []string{user.GroupUsers}
	}

	rec, err := m.rawUsers().Create(ctx, record.Record{
		"username": username,
		"password": password,
		"groups":   toAnySlice(groups),
	}, resource.CreateOptions{})
	if err != nil {
		// Unique-index race on username surfaces as a conflict too.
		if apierror.IsConflict(err) {
			return nil, apierror.ErrUsernameTaken
		}
		return nil, err
	}

	m.logger.Info().Str("username", username).Msg("user created")
	return m.toUser(ctx, rec)
}

// Auth verifies credentials and returns the user with a fresh session
// token. Wrong username and wrong password report the same error.
func (m *Manager) Auth(ctx context.Context, username, password string) (*user.User, string, error) {
	rec, err := m.rawUsers().FindOne(ctx, query.Query{"username": username})
	if err != nil {
		return nil, "", err
	}
	if rec == nil {
		return nil, "", apierror.ErrInvalidCredential
	}

	hash, _ := rec["hash"].(string)
	if hash == "" || !m.hasher.Compare([]byte(hash), password) {
		return nil, "", apierror.ErrInvalidCredential
	}

	u, err := m.toUser(ctx, rec)
	if err != nil {
		return nil, "", err
	}
	token, err := m.tokens.Issue(u.ID, u.Groups)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// FromToken resolves a session token to its user. A token whose user no
// longer exists is treated the same as an invalid token.
func (m *Manager) FromToken(ctx context.Context, token string) (*user.User, error) {
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	rec, err := m.rawUsers().Get(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apierror.ErrUnauthorized
	}
	return m.toUser(ctx, rec)
}

// Get resolves a user by id, or nil.
func (m *Manager) Get(ctx context.Context, id string) (*user.User, error) {
	rec, err := m.rawUsers().Get(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return m.toUser(ctx, rec)
}

// HasAdmins reports whether any account belongs to an admin group. Admin
// self-registration is only open while this is false.
func (m *Manager) HasAdmins(ctx context.Context) (bool, error) {
	for _, g := range user.AdminGroups {
		rec, err := m.rawUsers().FindOne(ctx, query.Query{"groups": map[string]any{"$elemMatch": g}})
		if err != nil {
			return false, err
		}
		if rec != nil {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the number of accounts. The transport layer uses this for
// the first-account-becomes-admin rule.
func (m *Manager) Count(ctx context.Context) (int, error) {
	records, _, err := m.rawUsers().Find(ctx, query.Query{}, resource.FindOptions{})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// toUser converts an account record into a principal, merging the
// permission maps of the account's groups with the account's own.
func (m *Manager) toUser(ctx context.Context, rec record.Record) (*user.User, error) {
	u := &user.User{
		ID:          rec.ID(),
		Username:    stringOf(rec["username"]),
		Groups:      toStringSlice(rec["groups"]),
		Permissions: user.Permissions{},
	}
	u.Hash, _ = rec["hash"].(string)

	for _, g := range u.Groups {
		grp, err := m.groups.FindOne(ctx, query.Query{"name": g})
		if err != nil {
			return nil, err
		}
		if grp == nil {
			continue
		}
		mergePermissions(u.Permissions, grp["permissions"])
	}
	mergePermissions(u.Permissions, rec["permissions"])
	return u, nil
}

// Sanitize strips credential material from an account record for
// client-facing responses.
func Sanitize(rec record.Record) record.Record {
	out := rec.Clone()
	delete(out, "hash")
	delete(out, "password")
	return out
}

// -----------------------------------------------------------------------------
// Hooks
// -----------------------------------------------------------------------------

// hashPassword replaces a plaintext password with its digest before the
// record is persisted. Runs on create and on every update touching the
// password.
func (m *Manager) hashPassword(ctx context.Context, e *schema.Event) error {
	plain, ok := e.Record["password"].(string)
	if !ok || plain == "" {
		return nil
	}
	digest, err := m.hasher.Hash(plain)
	if err != nil {
		return err
	}
	e.Record["hash"] = string(digest)
	delete(e.Record, "password")
	return nil
}

// checkGroupsExist rejects membership in groups that were never created.
func (m *Manager) checkGroupsExist(ctx context.Context, e *schema.Event) error {
	for _, g := range toStringSlice(e.Record["groups"]) {
		if user.IsBuiltinGroup(g) {
			continue
		}
		grp, err := m.groups.FindOne(ctx, query.Query{"name": g})
		if err != nil {
			return err
		}
		if grp == nil {
			return apierror.ErrInvalidUserGroup
		}
	}
	return nil
}

// stripCredentials removes hash and password from read results unless the
// caller asked for raw records.
func (m *Manager) stripCredentials(ctx context.Context, e *schema.Event) error {
	if raw, _ := e.Ctx.Value(RawRecordsKey).(bool); raw {
		return nil
	}
	for i, rec := range e.Records {
		e.Records[i] = Sanitize(rec)
	}
	if e.Record != nil {
		e.Record = Sanitize(e.Record)
	}
	return nil
}

// protectBuiltinGroups refuses removal of the seeded groups.
func (m *Manager) protectBuiltinGroups(ctx context.Context, e *schema.Event) error {
	matches, _, err := m.groups.Find(ctx, e.Query, resource.FindOptions{})
	if err != nil {
		return err
	}
	for _, rec := range matches {
		if user.IsBuiltinGroup(stringOf(rec["name"])) {
			return apierror.BadRequest("Cannot delete a built-in group")
		}
	}
	return nil
}

// seedGroups ensures the built-in groups exist: admins with full access,
// users with read-only access.
func (m *Manager) seedGroups(ctx context.Context) error {
	seeds := []user.Group{
		{Name: user.GroupAdmins, Permissions: user.AllAccess()},
		{Name: user.GroupUsers, Permissions: user.ReadOnly()},
	}
	for _, g := range seeds {
		existing, err := m.groups.FindOne(ctx, query.Query{"name": g.Name})
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		_, err = m.groups.Create(ctx, record.Record{
			"name":        g.Name,
			"permissions": permissionsMap(g.Permissions),
		}, resource.CreateOptions{})
		if err != nil && !apierror.IsConflict(err) {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Conversions
// -----------------------------------------------------------------------------

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toStringSlice(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// permissionsMap converts a Permissions value into the generic form records
// store.
func permissionsMap(p user.Permissions) map[string]any {
	out := make(map[string]any, len(p))
	for resourceName, actions := range p {
		out[resourceName] = toAnySlice(actions)
	}
	return out
}

// mergePermissions folds a stored permissions value into dst.
func mergePermissions(dst user.Permissions, v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	for resourceName, actions := range m {
		for _, a := range toStringSlice(actions) {
			if !containsFold(dst[resourceName], a) {
				dst[resourceName] = append(dst[resourceName], a)
			}
		}
	}
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
