package csbot

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// classifyRole classifies a guild role against the compiled course and
// miscellaneous patterns. Managed roles and @everyone (whose ID equals
// the guild ID) are never assignable.
func classifyRole(
	role *discordgo.Role,
	guildID string,
	coursePattern *regexp.Regexp,
	miscPattern *regexp.Regexp,
) (RoleKind, bool) {
	if role.Managed || role.ID == guildID {
		return "", false
	}
	if coursePattern.MatchString(role.Name) {
		return RoleKindCourse, true
	}
	if miscPattern.MatchString(role.Name) {
		return RoleKindMisc, true
	}
	return "", false
}

// RoleCache maintains the per-guild assignable-role caches used for
// autocomplete and self-assignment.
type RoleCache struct {
	session       DiscordSessionHandler
	store         *GuildStateStore
	coursePattern *regexp.Regexp
	logger        *slog.Logger
}

func newRoleCache(
	session DiscordSessionHandler,
	store *GuildStateStore,
	config *CourseConfig,
	logger *slog.Logger,
) (*RoleCache, error) {
	pattern, err := regexp.Compile(config.RolePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid course role pattern: %w", err)
	}
	return &RoleCache{
		session:       session,
		store:         store,
		coursePattern: pattern,
		logger:        logger.With(loggerNameKey, "role_cache"),
	}, nil
}

// RebuildGuild rebuilds the assignable-role cache for a single guild
// from the guild's full role list, replacing the cache atomically.
func (c *RoleCache) RebuildGuild(guildID string) error {
	roles, err := c.session.GuildRoles(guildID)
	if err != nil {
		return fmt.Errorf("error listing roles for guild %s: %w", guildID, err)
	}

	state := c.store.Guild(guildID)
	miscPattern := state.Config().MiscPattern()

	assignable := make([]AssignableRole, 0, len(roles))
	for _, role := range roles {
		kind, ok := classifyRole(role, guildID, c.coursePattern, miscPattern)
		if !ok {
			continue
		}
		assignable = append(assignable, AssignableRole{
			Name:   role.Name,
			RoleID: role.ID,
			Kind:   kind,
		})
	}
	sort.Slice(assignable, func(i, j int) bool {
		return assignable[i].Name < assignable[j].Name
	})

	state.ReplaceAssignableRoles(assignable)
	c.logger.Info(
		"rebuilt role cache",
		"guild_id", guildID,
		"assignable", len(assignable),
	)
	return nil
}

// RebuildAll rebuilds the cache for every known guild. A failure in one
// guild is logged and does not prevent the others from rebuilding; the
// last error is returned.
func (c *RoleCache) RebuildAll() error {
	var lastErr error
	for _, guildID := range c.store.GuildIDs() {
		if err := c.RebuildGuild(guildID); err != nil {
			c.logger.Error(
				"error rebuilding role cache",
				tint.Err(err),
				"guild_id", guildID,
			)
			lastErr = err
		}
	}
	return lastErr
}

// Add registers a newly created role in the guild's cache.
func (c *RoleCache) Add(guildID string, role AssignableRole) {
	c.store.Guild(guildID).AddAssignableRole(role)
}

// Remove drops a role from the guild's cache. If the role isn't cached
// the cache has drifted from the guild, so it is rebuilt instead.
func (c *RoleCache) Remove(guildID string, roleID string) {
	if c.store.Guild(guildID).RemoveAssignableRole(roleID) {
		return
	}
	c.logger.Warn(
		"role missing from cache, rebuilding",
		"guild_id", guildID,
		"role_id", roleID,
	)
	if err := c.RebuildGuild(guildID); err != nil {
		c.logger.Error(
			"error rebuilding role cache",
			tint.Err(err),
			"guild_id", guildID,
		)
	}
}

// IsCourseName reports whether the given name matches the course role
// pattern.
func (c *RoleCache) IsCourseName(name string) bool {
	return c.coursePattern.MatchString(name)
}
