package user

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RolePolicy decides which role a provisioned user gets. It is plain data
// loaded from configuration and handed to the user service, so operator
// identities never live in code.
type RolePolicy struct {
	DefaultRole string     `json:"default_role"`
	Rules       []RoleRule `json:"rules"`
}

// RoleRule assigns a role by exact email or by email domain. The first
// matching rule wins.
type RoleRule struct {
	Email       string `json:"email,omitempty"`
	EmailDomain string `json:"email_domain,omitempty"`
	Role        string `json:"role"`
}

// ParseRolePolicy reads a policy from its JSON form (the ADMIN_ROLE_POLICY
// environment variable). An empty document yields the member-only default.
func ParseRolePolicy(raw string) (*RolePolicy, error) {
	policy := &RolePolicy{DefaultRole: RoleMember}
	if strings.TrimSpace(raw) == "" {
		return policy, nil
	}
	if err := json.Unmarshal([]byte(raw), policy); err != nil {
		return nil, fmt.Errorf("failed to parse role policy: %w", err)
	}
	if policy.DefaultRole == "" {
		policy.DefaultRole = RoleMember
	}
	return policy, nil
}

// RoleFor resolves the role for an email address.
func (p *RolePolicy) RoleFor(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, rule := range p.Rules {
		if rule.Email != "" && strings.ToLower(rule.Email) == email {
			return rule.Role
		}
		if rule.EmailDomain != "" && strings.HasSuffix(email, "@"+strings.ToLower(rule.EmailDomain)) {
			return rule.Role
		}
	}
	return p.DefaultRole
}
