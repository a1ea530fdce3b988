package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowhub/knowhub/internal/model"
)

func grant(level model.PermissionLevel) *model.PermissionGrant {
	return &model.PermissionGrant{Level: level}
}

func TestDecideOwnerAlwaysAllowed(t *testing.T) {
	allowed, basis := decide("user-1", "user-1", model.LevelAdmin, nil, nil)
	require.True(t, allowed)
	require.True(t, basis.IsOwner)
	require.Equal(t, model.LevelAdmin, basis.GrantedLevel)

	// owner wins even when an explicit lower grant exists
	allowed, basis = decide("user-1", "user-1", model.LevelWrite, grant(model.LevelRead), nil)
	require.True(t, allowed)
	require.True(t, basis.IsOwner)
}

func TestDecideUserGrantOverridesRoleGrant(t *testing.T) {
	// user-specific read beats a role admin grant: most specific wins
	allowed, basis := decide("owner", "user-1", model.LevelWrite, grant(model.LevelRead), grant(model.LevelAdmin))
	require.False(t, allowed)
	require.True(t, basis.HasUserGrant)
	require.False(t, basis.HasRoleGrant)
	require.Equal(t, model.LevelRead, basis.GrantedLevel)
}

func TestDecideRoleGrantFallback(t *testing.T) {
	allowed, basis := decide("owner", "user-1", model.LevelRead, nil, grant(model.LevelRead))
	require.True(t, allowed)
	require.True(t, basis.HasRoleGrant)

	allowed, _ = decide("owner", "user-1", model.LevelWrite, nil, grant(model.LevelRead))
	require.False(t, allowed)
}

func TestDecideNoGrantDenied(t *testing.T) {
	allowed, basis := decide("owner", "user-1", model.LevelRead, nil, nil)
	require.False(t, allowed)
	require.False(t, basis.IsOwner)
	require.False(t, basis.HasUserGrant)
	require.False(t, basis.HasRoleGrant)
}

func TestDecideLevelHierarchy(t *testing.T) {
	for _, requested := range []model.PermissionLevel{model.LevelRead, model.LevelWrite, model.LevelAdmin} {
		allowed, _ := decide("owner", "user-1", requested, grant(model.LevelAdmin), nil)
		require.True(t, allowed, "admin grant should satisfy %s", requested)
	}
	allowed, _ := decide("owner", "user-1", model.LevelAdmin, grant(model.LevelWrite), nil)
	require.False(t, allowed)
}
