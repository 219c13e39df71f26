// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package authz

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestEnforcer(t *testing.T, cfg EnforcerConfig) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(cfg)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	return e
}

func TestEnforceWithRoles_DefaultPolicy(t *testing.T) {
	e := newTestEnforcer(t, DefaultEnforcerConfig())

	tests := []struct {
		name   string
		roles  []string
		path   string
		action string
		want   bool
	}{
		{"user sends events", []string{"user"}, "/api/v1/events", ActionWrite, true},
		{"user reads recent activity", []string{"user"}, "/api/v1/activity/recent", ActionRead, true},
		{"user reads stats", nil, "/api/v1/activity/stats", ActionRead, true},
		{"default role sends events", nil, "/api/v1/events", ActionWrite, true},
		{"user cannot list dead letters", []string{"user"}, "/api/v1/deadletters", ActionRead, false},
		{"user cannot delete dead letters", nil, "/api/v1/deadletters/abc", ActionDelete, false},
		{"user cannot write activity", []string{"user"}, "/api/v1/activity/recent", ActionWrite, false},
		{"admin lists dead letters", []string{"admin"}, "/api/v1/deadletters", ActionRead, true},
		{"admin replays", []string{"admin"}, "/api/v1/deadletters/abc/replay", ActionWrite, true},
		{"admin deletes", []string{"admin"}, "/api/v1/deadletters/abc", ActionDelete, true},
		{"admin inherits user", []string{"admin"}, "/api/v1/events", ActionWrite, true},
		{"unknown role", []string{"guest"}, "/api/v1/events", ActionWrite, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EnforceWithRoles("u1", tt.roles, tt.path, tt.action)
			if err != nil {
				t.Fatalf("EnforceWithRoles: %v", err)
			}
			if got != tt.want {
				t.Errorf("EnforceWithRoles(%v, %s, %s) = %v, want %v", tt.roles, tt.path, tt.action, got, tt.want)
			}
		})
	}
}

func TestEnforceWithRoles_UserIDIsNotARole(t *testing.T) {
	e := newTestEnforcer(t, EnforcerConfig{})

	allowed, err := e.EnforceWithRoles("admin", nil, "/api/v1/deadletters", ActionRead)
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("a user named admin must not get the admin role")
	}
}

func TestEnforceWithRoles_NoDefaultRole(t *testing.T) {
	e := newTestEnforcer(t, EnforcerConfig{})

	allowed, err := e.EnforceWithRoles("u1", nil, "/api/v1/events", ActionWrite)
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("without roles or a default role nothing is allowed")
	}
}

func TestNewEnforcer_PolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.csv")
	policy := "p, user, /api/v1/events, write\n" +
		"p, admin, /api/v1/*, (read|write|delete)\n" +
		"g, user:ops-1, admin\n"
	if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
		t.Fatal(err)
	}

	e := newTestEnforcer(t, EnforcerConfig{PolicyPath: path, DefaultRole: "user"})

	allowed, err := e.EnforceWithRoles("ops-1", nil, "/api/v1/deadletters", ActionRead)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("ops-1 should be admin through the policy file")
	}

	allowed, _ = e.EnforceWithRoles("u2", nil, "/api/v1/activity/recent", ActionRead)
	if allowed {
		t.Error("the file policy grants no activity access")
	}
}

func TestNewEnforcer_MissingPolicyFileFallsBack(t *testing.T) {
	e := newTestEnforcer(t, EnforcerConfig{
		PolicyPath:  filepath.Join(t.TempDir(), "missing.csv"),
		DefaultRole: "user",
	})
	allowed, err := e.EnforceWithRoles("u1", nil, "/api/v1/events", ActionWrite)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("built-in policy should apply")
	}
}

func TestEnforce_Cache(t *testing.T) {
	e := newTestEnforcer(t, DefaultEnforcerConfig())

	for i := 0; i < 3; i++ {
		if _, err := e.Enforce("admin", "/api/v1/deadletters", ActionRead); err != nil {
			t.Fatal(err)
		}
	}
	if n := e.cache.Len(); n != 1 {
		t.Errorf("cache entries = %d, want 1", n)
	}

	uncached := newTestEnforcer(t, EnforcerConfig{})
	if uncached.cache != nil {
		t.Error("CacheSize 0 should disable the cache")
	}
}

func TestLoadPolicy_Malformed(t *testing.T) {
	e := newTestEnforcer(t, EnforcerConfig{})
	if err := loadPolicy(e.enforcer, "p, only-two"); err == nil {
		t.Error("expected error for malformed line")
	}
}
