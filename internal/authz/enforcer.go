// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package authz

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/murmur/internal/cache"
)

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

const defaultPolicy = `
p, user, /api/v1/events, write
p, user, /api/v1/activity/*, read
p, admin, /api/v1/*, (read|write|delete)
g, admin, user
`

// Actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// EnforcerConfig configures NewEnforcer.
type EnforcerConfig struct {
	// PolicyPath is a Casbin CSV policy file. Empty, or a path that does
	// not exist, selects the built-in policy.
	PolicyPath string

	// DefaultRole is used for subjects that carry no roles.
	DefaultRole string

	// CacheSize and CacheTTL bound the decision cache. CacheSize 0 disables it.
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultEnforcerConfig returns the production defaults.
func DefaultEnforcerConfig() EnforcerConfig {
	return EnforcerConfig{
		DefaultRole: "user",
		CacheSize:   10000,
		CacheTTL:    5 * time.Minute,
	}
}

// Enforcer wraps a Casbin SyncedEnforcer.
type Enforcer struct {
	config   EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *cache.LRU[bool]
}

// NewEnforcer loads the model and policy.
func NewEnforcer(config EnforcerConfig) (*Enforcer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if config.PolicyPath != "" && fileExists(config.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(config.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicy(enforcer, defaultPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{config: config, enforcer: enforcer}
	if config.CacheSize > 0 {
		e.cache = cache.NewLRU[bool](config.CacheSize, config.CacheTTL)
	}
	return e, nil
}

// loadPolicy adds the p and g lines of a CSV policy.
func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		rule := parts[1:]
		switch {
		case parts[0] == "p" && len(rule) == 3:
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		case parts[0] == "g" && len(rule) == 2:
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Enforce reports whether subject may perform action on object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	key := subject + "\x00" + object + "\x00" + action
	if e.cache != nil {
		if allowed, ok := e.cache.Get(key); ok {
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}

	if e.cache != nil {
		e.cache.Add(key, allowed)
	}
	return allowed, nil
}

// EnforceWithRoles allows the request when the user itself or any of roles
// is allowed. With no roles, DefaultRole is tried instead.
func (e *Enforcer) EnforceWithRoles(userID string, roles []string, object, action string) (bool, error) {
	if allowed, err := e.Enforce(UserSubject(userID), object, action); err != nil || allowed {
		return allowed, err
	}

	if len(roles) == 0 && e.config.DefaultRole != "" {
		roles = []string{e.config.DefaultRole}
	}
	for _, role := range roles {
		if allowed, err := e.Enforce(role, object, action); err != nil || allowed {
			return allowed, err
		}
	}
	return false, nil
}

// UserSubject is the policy subject of one user.
func UserSubject(userID string) string { return "user:" + userID }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
