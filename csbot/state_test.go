package csbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildStateConfigDefaults(t *testing.T) {
	state := &GuildState{}
	cfg := state.Config()

	require.NotNil(t, cfg)
	assert.Equal(t, DefaultWelcomeMessage, cfg.WelcomeMessage)
	assert.Equal(t, DefaultGoodbyeMessage, cfg.GoodbyeMessage)
	assert.Equal(t, DefaultBaseRolePos, cfg.BaseRolePos)
	assert.Empty(t, cfg.WelcomeChannel)
}

func TestGuildStateAssignableRoles(t *testing.T) {
	state := &GuildState{}

	state.AddAssignableRole(AssignableRole{
		Name:   "357 Smith",
		RoleID: "role-1",
		Kind:   RoleKindCourse,
	})
	state.AddAssignableRole(AssignableRole{
		Name:   "Gamers",
		RoleID: "role-2",
		Kind:   RoleKindMisc,
	})
	assert.Len(t, state.AssignableRoles(), 2)

	// adding with a known role ID replaces the entry
	state.AddAssignableRole(AssignableRole{
		Name:   "357 Jones",
		RoleID: "role-1",
		Kind:   RoleKindCourse,
	})
	roles := state.AssignableRoles()
	require.Len(t, roles, 2)
	assert.Equal(t, "357 Jones", roles[0].Name)

	assert.True(t, state.RemoveAssignableRole("role-2"))
	assert.False(t, state.RemoveAssignableRole("role-2"))
	assert.Len(t, state.AssignableRoles(), 1)
}

func TestGuildStateAssignableRolesCopy(t *testing.T) {
	state := &GuildState{}
	state.AddAssignableRole(AssignableRole{Name: "357 Smith", RoleID: "role-1"})

	roles := state.AssignableRoles()
	roles[0].Name = "mutated"

	assert.Equal(t, "357 Smith", state.AssignableRoles()[0].Name)
}

func TestGuildStateFindCourseRole(t *testing.T) {
	state := &GuildState{}
	state.AddAssignableRole(AssignableRole{
		Name:   "357 Smith",
		RoleID: "role-1",
		Kind:   RoleKindCourse,
	})
	state.AddAssignableRole(AssignableRole{
		Name:   "Gamers",
		RoleID: "role-2",
		Kind:   RoleKindMisc,
	})

	found, ok := state.FindCourseRole("357 smith")
	require.True(t, ok)
	assert.Equal(t, "role-1", found.RoleID)

	// misc roles are not courses, even on an exact name match
	_, ok = state.FindCourseRole("Gamers")
	assert.False(t, ok)

	_, ok = state.FindCourseRole("101 Adams")
	assert.False(t, ok)
}

func TestGuildStateStore(t *testing.T) {
	store := newGuildStateStore()

	a := store.Guild("guild-a")
	assert.Same(t, a, store.Guild("guild-a"))

	store.Guild("guild-c")
	store.Guild("guild-b")
	assert.Equal(
		t,
		[]string{"guild-a", "guild-b", "guild-c"},
		store.GuildIDs(),
	)
}
