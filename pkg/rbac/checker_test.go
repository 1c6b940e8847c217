package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
)

func TestDefaultPermissions(t *testing.T) {
	tests := []struct {
		role    Role
		granted []Permission
		denied  []Permission
	}{
		{
			role:    RoleAdministrator,
			granted: []Permission{PermProjectsViewAll, PermUsersManage, PermDocumentsDelete, PermExpensesApprove},
			denied:  []Permission{PermProjectsViewAssigned, PermTasksEditOwn},
		},
		{
			role:    RoleProjectManager,
			granted: []Permission{PermProjectsCreate, PermExpensesApprove, PermRisksManage},
			denied:  []Permission{PermProjectsDelete, PermProjectsViewAll, PermUsersManage},
		},
		{
			role:    RoleSiteSupervisor,
			granted: []Permission{PermTasksCreate, PermExpensesLog, PermRisksReport},
			denied:  []Permission{PermProjectsCreate, PermExpensesApprove},
		},
		{
			role:    RoleTeamMember,
			granted: []Permission{PermTasksEditOwn, PermDocumentsUpload, PermMessagesSend},
			denied:  []Permission{PermTasksCreate, PermRisksView},
		},
		{
			role:    RoleStakeholder,
			granted: []Permission{PermBudgetViewSummary, PermRisksView, PermReportsViewAll},
			denied:  []Permission{PermBudgetViewDetails, PermDocumentsUpload},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			set := DefaultPermissions(tt.role)
			for _, p := range tt.granted {
				assert.True(t, set.Has(p), "expected %s to hold %s", tt.role, p)
			}
			for _, p := range tt.denied {
				assert.False(t, set.Has(p), "expected %s not to hold %s", tt.role, p)
			}
		})
	}
}

func TestDefaultPermissions_UnknownRole(t *testing.T) {
	assert.Empty(t, DefaultPermissions(Role("Janitor")))
}

func TestResolve(t *testing.T) {
	stored := Resolve(RoleTeamMember, []string{"projects:create"})
	assert.True(t, stored.Has(PermProjectsCreate))
	assert.False(t, stored.Has(PermTasksEditOwn))

	fallback := Resolve(RoleTeamMember, nil)
	assert.True(t, fallback.Has(PermTasksEditOwn))
}

func TestPermissionSet_Require(t *testing.T) {
	set := NewPermissionSet("projects:create", "")
	require.NoError(t, set.Require(PermProjectsCreate))

	err := set.Require(PermProjectsDelete)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	assert.Contains(t, err.Error(), "projects:delete")
}

func TestPermissionSet_HasAnyAndStrings(t *testing.T) {
	set := NewPermissionSet("risks:view", "messages:send")
	assert.True(t, set.HasAny(PermRisksManage, PermRisksView))
	assert.False(t, set.HasAny(PermRisksManage))
	assert.Equal(t, []string{"messages:send", "risks:view"}, set.Strings())
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"Administrator", RoleAdministrator, false},
		{"project manager", RoleProjectManager, false},
		{"SITE_SUPERVISOR", RoleSiteSupervisor, false},
		{"  Stakeholder ", RoleStakeholder, false},
		{"owner", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
