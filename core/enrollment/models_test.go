package enrollment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrimaryRole(t *testing.T) {
	tests := []struct {
		name        string
		assignments []RoleAssignment
		want        Role
	}{
		{name: "no assignments", want: Role("")},
		{
			name:        "single pending",
			assignments: []RoleAssignment{{Role: RoleLearner, Status: StatusPending}},
			want:        RoleLearner,
		},
		{
			name: "first accepted wins over earlier pending",
			assignments: []RoleAssignment{
				{Role: RoleTeacher, Status: StatusPending},
				{Role: RoleGradeHead, Status: StatusAccepted},
			},
			want: RoleGradeHead,
		},
		{
			name: "first accepted wins among several accepted",
			assignments: []RoleAssignment{
				{Role: RoleTeacher, Status: StatusAccepted},
				{Role: RolePrincipal, Status: StatusAccepted},
			},
			want: RoleTeacher,
		},
		{
			name: "all rejected falls back to first",
			assignments: []RoleAssignment{
				{Role: RoleSGB, Status: StatusRejected},
				{Role: RoleFinance, Status: StatusRejected},
			},
			want: RoleSGB,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrimaryRole(tt.assignments))
		})
	}
}

func TestIsAccepted(t *testing.T) {
	assert.False(t, IsAccepted(nil))
	assert.False(t, IsAccepted([]RoleAssignment{{Status: StatusPending}, {Status: StatusRejected}}))
	assert.True(t, IsAccepted([]RoleAssignment{{Status: StatusRejected}, {Status: StatusAccepted}}))
}

func TestRole_Path(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleLearner, "/student"},
		{RoleTeacher, "/teacher"},
		{RoleGradeHead, "/grade-head"},
		{RolePrincipal, "/principal"},
		{RoleAdmin, "/admin"},
		{RoleSGB, "/sgb"},
		{RoleFinance, "/finance"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Path())
		})
	}
}

func TestAccount_permissions(t *testing.T) {
	admin := Account{Roles: []RoleAssignment{{Role: RoleAdmin, Status: StatusAccepted}}}
	assert.True(t, admin.IsAdmin())
	assert.False(t, admin.IsPrincipal())

	pendingAdmin := Account{Roles: []RoleAssignment{{Role: RoleAdmin, Status: StatusPending}}}
	assert.False(t, pendingAdmin.IsAdmin())

	principal := Account{Roles: []RoleAssignment{{Role: RolePrincipal, Status: StatusAccepted}}}
	assert.True(t, principal.IsPrincipal())
	assert.False(t, principal.IsAdmin())
}
