package csbot

import (
	"math/rand"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorDeltaE(t *testing.T) {
	assert.Zero(t, colorDeltaE(0x123456, 0x123456))

	// black to white spans the full lightness axis
	assert.InDelta(t, 100.0, colorDeltaE(0x000000, 0xffffff), 0.1)

	assert.Greater(t, colorDeltaE(0xff0000, 0x0000ff), 50.0)
}

func TestPickDistinctColor(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	color := pickDistinctColor(rng, []int{0x000000}, 25, 5.0)
	assert.GreaterOrEqual(t, colorDeltaE(color, 0x000000), 5.0)
}

func TestPickDistinctColorFallback(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	// no color can be 1000 deltaE away from anything, so every attempt
	// fails and the fallback is pure black
	color := pickDistinctColor(rng, []int{0x808080}, 25, 1000.0)
	assert.Equal(t, 0x000000, color)
}

func TestColorAllocatorPick(t *testing.T) {
	session := newMockSession()
	adminColor := 0x000010
	session.roles = []*discordgo.Role{
		{ID: "role-admin", Name: "Admin", Color: adminColor},
		{ID: "role-course", Name: "357 Smith", Color: 0x00ff00},
	}

	allocator, err := newColorAllocator(
		session,
		DefaultConfig().Courses,
		testLogger(),
		rand.New(rand.NewSource(1)),
	)
	require.NoError(t, err)

	color, err := allocator.Pick("guild-1")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, colorDeltaE(color, adminColor), 5.0)
	for _, reserved := range reservedRoleColors {
		assert.GreaterOrEqual(t, colorDeltaE(color, reserved), 5.0)
	}
}

func TestColorAllocatorPickBadPattern(t *testing.T) {
	cfg := DefaultConfig().Courses
	cfg.RolePattern = "["

	_, err := newColorAllocator(
		newMockSession(),
		cfg,
		testLogger(),
		rand.New(rand.NewSource(1)),
	)
	assert.Error(t, err)
}
