package csbot

import (
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"

	"github.com/lucasb-eyer/go-colorful"
)

// Colors never handed out to course roles: pure black (Discord's "no
// color"), the dark embed background, and pure white.
var reservedRoleColors = []int{0x000000, 0x35393e, 0xffffff}

// colorDeltaE returns the CIE76 Lab distance between two packed RGB
// colors, scaled to the conventional 0-100 range.
func colorDeltaE(a, b int) float64 {
	ca := colorful.Color{
		R: float64((a>>16)&0xff) / 255,
		G: float64((a>>8)&0xff) / 255,
		B: float64(a&0xff) / 255,
	}
	cb := colorful.Color{
		R: float64((b>>16)&0xff) / 255,
		G: float64((b>>8)&0xff) / 255,
		B: float64(b&0xff) / 255,
	}
	return ca.DistanceLab(cb) * 100
}

// pickDistinctColor draws uniform random colors until one is at least
// minDeltaE away from every taken color, giving up after maxAttempts
// draws and falling back to pure black.
func pickDistinctColor(
	rng *rand.Rand,
	taken []int,
	maxAttempts int,
	minDeltaE float64,
) int {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := rng.Intn(0x1000000)
		distinct := true
		for _, existing := range taken {
			if colorDeltaE(candidate, existing) < minDeltaE {
				distinct = false
				break
			}
		}
		if distinct {
			return candidate
		}
	}
	return 0x000000
}

// ColorAllocator picks visually distinct colors for new course roles.
type ColorAllocator struct {
	session       DiscordSessionHandler
	coursePattern *regexp.Regexp
	maxAttempts   int
	minDeltaE     float64
	logger        *slog.Logger
	rng           *rand.Rand
}

func newColorAllocator(
	session DiscordSessionHandler,
	config *CourseConfig,
	logger *slog.Logger,
	rng *rand.Rand,
) (*ColorAllocator, error) {
	pattern, err := regexp.Compile(config.RolePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid course role pattern: %w", err)
	}
	return &ColorAllocator{
		session:       session,
		coursePattern: pattern,
		maxAttempts:   config.ColorMaxAttempts,
		minDeltaE:     config.ColorMinDeltaE,
		logger:        logger.With(loggerNameKey, "color_allocator"),
		rng:           rng,
	}, nil
}

// Pick returns a color for a new course role in the given guild,
// avoiding the colors of existing non-course roles and the reserved
// set. Course role colors are not avoided, so a large roster doesn't
// exhaust the palette.
func (a *ColorAllocator) Pick(guildID string) (int, error) {
	roles, err := a.session.GuildRoles(guildID)
	if err != nil {
		return 0, fmt.Errorf("error listing roles for guild %s: %w", guildID, err)
	}

	taken := make([]int, 0, len(roles)+len(reservedRoleColors))
	taken = append(taken, reservedRoleColors...)
	for _, role := range roles {
		if a.coursePattern.MatchString(role.Name) {
			continue
		}
		taken = append(taken, role.Color)
	}

	color := pickDistinctColor(a.rng, taken, a.maxAttempts, a.minDeltaE)
	a.logger.Debug(
		"picked role color",
		"guild_id", guildID,
		"color", fmt.Sprintf("#%06x", color),
	)
	return color, nil
}
