package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRolePolicyEmpty(t *testing.T) {
	policy, err := ParseRolePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, policy.RoleFor("anyone@example.com"))
}

func TestRolePolicyRules(t *testing.T) {
	policy, err := ParseRolePolicy(`{
		"rules": [
			{"email": "ops@example.com", "role": "admin"},
			{"email_domain": "staff.example.com", "role": "admin"}
		]
	}`)
	require.NoError(t, err)

	assert.Equal(t, RoleAdmin, policy.RoleFor("ops@example.com"))
	assert.Equal(t, RoleAdmin, policy.RoleFor("OPS@example.com"))
	assert.Equal(t, RoleAdmin, policy.RoleFor("coach@staff.example.com"))
	assert.Equal(t, RoleMember, policy.RoleFor("runner@example.com"))
}

func TestParseRolePolicyInvalidJSON(t *testing.T) {
	_, err := ParseRolePolicy("{nope")
	assert.Error(t, err)
}
