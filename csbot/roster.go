package csbot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var (
	// ErrCourseAlreadyExists indicates a course role with the same name
	// is already cached for the guild.
	ErrCourseAlreadyExists = errors.New("course already exists")

	// ErrCourseRoleNotFound indicates the given role ID does not resolve
	// to a role in the guild.
	ErrCourseRoleNotFound = errors.New("course role not found")

	// ErrNoPermittedRoles indicates no role qualified for access to a
	// new course category.
	ErrNoPermittedRoles = errors.New("no permitted roles for course category")

	// ErrMissingCourseNumber indicates a course alias without a leading
	// course number, from which channel names are derived.
	ErrMissingCourseNumber = errors.New("course alias has no leading number")
)

// PartialFailure aggregates per-artifact failures from a course
// operation that partially succeeded. Successful sub-operations are
// kept; the failures are reported, not rolled back.
type PartialFailure struct {
	Failures []string
}

func (p *PartialFailure) Error() string {
	return fmt.Sprintf(
		"%d operation(s) failed: %s",
		len(p.Failures),
		strings.Join(p.Failures, "; "),
	)
}

// Lines returns the user-visible failure report, one line per failed
// artifact.
func (p *PartialFailure) Lines() []string {
	lines := make([]string, len(p.Failures))
	for i, failure := range p.Failures {
		lines[i] = "**ERROR** " + failure
	}
	return lines
}

// textChannelName derives the course text channel name from the
// alias's leading course number ("357 Smith" -> "general-357").
func textChannelName(alias string) string {
	return "general-" + numericPrefix(alias)
}

// voiceChannelName derives the course voice channel name from the
// alias's leading course number.
func voiceChannelName(alias string) string {
	return "voice-" + numericPrefix(alias)
}

// CourseManager orchestrates the create/remove/clear lifecycle of a
// course's role, category and channels.
//
// Creation is a multi-step workflow against the guild; each step is a
// separate fallible remote call. A failed step rolls back every
// artifact created earlier in the same invocation, in reverse creation
// order, best-effort. Removal and clearing collect per-artifact
// failures instead of short-circuiting.
type CourseManager struct {
	session   DiscordSessionHandler
	store     *GuildStateStore
	roleCache *RoleCache
	colors    *ColorAllocator
	logger    *slog.Logger
}

func newCourseManager(
	session DiscordSessionHandler,
	store *GuildStateStore,
	roleCache *RoleCache,
	colors *ColorAllocator,
	logger *slog.Logger,
) *CourseManager {
	return &CourseManager{
		session:   session,
		store:     store,
		roleCache: roleCache,
		colors:    colors,
		logger:    logger.With(loggerNameKey, "course_manager"),
	}
}

// Create provisions a new course: role, category, permission
// overwrites, and a text and voice channel. Any step failing rolls
// back all artifacts created by this invocation.
func (cm *CourseManager) Create(guildID string, alias string) error {
	state := cm.store.Guild(guildID)
	state.courseMu.Lock()
	defer state.courseMu.Unlock()

	if _, exists := state.FindCourseRole(alias); exists {
		return fmt.Errorf("%w: %s", ErrCourseAlreadyExists, alias)
	}
	if numericPrefix(alias) == "" {
		return fmt.Errorf("%w: %q", ErrMissingCourseNumber, alias)
	}

	log := cm.logger.With("guild_id", guildID, "course", alias)

	color, err := cm.colors.Pick(guildID)
	if err != nil {
		return fmt.Errorf("error picking course color: %w", err)
	}

	hoist := true
	mentionable := true
	role, err := cm.session.GuildRoleCreate(
		guildID,
		&discordgo.RoleParams{
			Name:        alias,
			Color:       &color,
			Hoist:       &hoist,
			Mentionable: &mentionable,
		},
	)
	if err != nil {
		return fmt.Errorf("error creating course role: %w", err)
	}

	cm.positionRole(guildID, role, log)
	cm.roleCache.Add(guildID, AssignableRole{
		Name:   alias,
		RoleID: role.ID,
		Kind:   RoleKindCourse,
	})

	permitted, err := cm.permittedRoles(guildID, role)
	if err != nil {
		cm.rollback(guildID, role, nil, log)
		return fmt.Errorf("error computing permitted roles: %w", err)
	}
	if len(permitted) == 0 {
		cm.rollback(guildID, role, nil, log)
		return ErrNoPermittedRoles
	}

	category, err := cm.session.GuildChannelCreateComplex(
		guildID,
		discordgo.GuildChannelCreateData{
			Name: alias,
			Type: discordgo.ChannelTypeGuildCategory,
		},
	)
	if err != nil {
		cm.rollback(guildID, role, nil, log)
		return fmt.Errorf("error creating course category: %w", err)
	}

	// hide the category from @everyone, then let each permitted role in
	if err = cm.session.ChannelPermissionSet(
		category.ID,
		guildID,
		discordgo.PermissionOverwriteTypeRole,
		0,
		discordgo.PermissionViewChannel,
	); err != nil {
		cm.rollback(guildID, role, []*discordgo.Channel{category}, log)
		return fmt.Errorf("error restricting course category: %w", err)
	}
	for _, permittedRole := range permitted {
		if err = cm.session.ChannelPermissionSet(
			category.ID,
			permittedRole.ID,
			discordgo.PermissionOverwriteTypeRole,
			discordgo.PermissionViewChannel,
			0,
		); err != nil {
			cm.rollback(guildID, role, []*discordgo.Channel{category}, log)
			return fmt.Errorf(
				"error granting category access to role %s: %w",
				permittedRole.Name,
				err,
			)
		}
	}

	text, err := cm.session.GuildChannelCreateComplex(
		guildID,
		discordgo.GuildChannelCreateData{
			Name:     textChannelName(alias),
			Type:     discordgo.ChannelTypeGuildText,
			Topic:    "General discussion for " + alias,
			ParentID: category.ID,
		},
	)
	if err != nil {
		cm.rollback(guildID, role, []*discordgo.Channel{category}, log)
		return fmt.Errorf("error creating course text channel: %w", err)
	}

	_, err = cm.session.GuildChannelCreateComplex(
		guildID,
		discordgo.GuildChannelCreateData{
			Name:     voiceChannelName(alias),
			Type:     discordgo.ChannelTypeGuildVoice,
			ParentID: category.ID,
		},
	)
	if err != nil {
		cm.rollback(guildID, role, []*discordgo.Channel{text, category}, log)
		return fmt.Errorf("error creating course voice channel: %w", err)
	}

	log.Info("created course", "role_id", role.ID, "category_id", category.ID)
	return nil
}

// positionRole moves a new course role to the configured base
// position. Positioning is cosmetic, so failures are logged and never
// roll anything back.
func (cm *CourseManager) positionRole(
	guildID string,
	role *discordgo.Role,
	log *slog.Logger,
) {
	basePos, err := strconv.Atoi(cm.store.Guild(guildID).Config().BaseRolePos)
	if err != nil {
		basePos = 1
	}
	role.Position = basePos
	if _, err = cm.session.GuildRoleReorder(
		guildID,
		[]*discordgo.Role{role},
	); err != nil {
		log.Warn("error positioning course role", tint.Err(err))
	}
}

// permittedRoles returns the roles granted access to a new course
// category: every role holding ManageChannels, plus the course role
// itself.
func (cm *CourseManager) permittedRoles(
	guildID string,
	courseRole *discordgo.Role,
) ([]*discordgo.Role, error) {
	roles, err := cm.session.GuildRoles(guildID)
	if err != nil {
		return nil, err
	}
	permitted := make([]*discordgo.Role, 0, len(roles))
	for _, role := range roles {
		if role.ID == courseRole.ID ||
			role.Permissions&discordgo.PermissionManageChannels != 0 {
			permitted = append(permitted, role)
		}
	}
	return permitted, nil
}

// rollback deletes the artifacts created by a failed Create, in
// reverse creation order: channels (most recent first), then the role.
// Cleanup failures are logged, not retried.
func (cm *CourseManager) rollback(
	guildID string,
	role *discordgo.Role,
	channels []*discordgo.Channel,
	log *slog.Logger,
) {
	for _, ch := range channels {
		if _, err := cm.session.ChannelDelete(ch.ID); err != nil {
			log.Error(
				"rollback: error deleting channel",
				tint.Err(err),
				"channel_id", ch.ID,
				"channel_name", ch.Name,
			)
		}
	}
	if role != nil {
		if err := cm.session.GuildRoleDelete(guildID, role.ID); err != nil {
			log.Error(
				"rollback: error deleting role",
				tint.Err(err),
				"role_id", role.ID,
			)
		}
		cm.roleCache.Remove(guildID, role.ID)
	}
}

// resolveCourse resolves a course role ID to the role, its category
// (matched by case-insensitive name equality), and the channels
// parented to that category. A missing category yields a nil category
// and no channels.
func (cm *CourseManager) resolveCourse(guildID string, roleID string) (
	*discordgo.Role,
	*discordgo.Channel,
	[]*discordgo.Channel,
	error,
) {
	roles, err := cm.session.GuildRoles(guildID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error listing guild roles: %w", err)
	}
	var role *discordgo.Role
	for _, r := range roles {
		if r.ID == roleID {
			role = r
			break
		}
	}
	if role == nil {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrCourseRoleNotFound, roleID)
	}

	channels, err := cm.session.GuildChannels(guildID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error listing guild channels: %w", err)
	}
	var category *discordgo.Channel
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory &&
			strings.EqualFold(ch.Name, role.Name) {
			category = ch
			break
		}
	}

	var children []*discordgo.Channel
	if category != nil {
		for _, ch := range channels {
			if ch.ParentID == category.ID {
				children = append(children, ch)
			}
		}
	}
	return role, category, children, nil
}

// Remove deletes a course's channels, category and role, collecting
// per-artifact failures. Successfully deleted artifacts stay deleted;
// a PartialFailure names each artifact that could not be removed.
func (cm *CourseManager) Remove(guildID string, roleID string) error {
	state := cm.store.Guild(guildID)
	state.courseMu.Lock()
	defer state.courseMu.Unlock()

	return cm.removeLocked(guildID, roleID)
}

func (cm *CourseManager) removeLocked(guildID string, roleID string) error {
	role, category, channels, err := cm.resolveCourse(guildID, roleID)
	if err != nil {
		return err
	}

	var failures []string
	for _, ch := range channels {
		if _, err = cm.session.ChannelDelete(ch.ID); err != nil {
			failures = append(
				failures,
				fmt.Sprintf("Failed to delete channel %q", ch.Name),
			)
		}
	}
	if category != nil {
		if _, err = cm.session.ChannelDelete(category.ID); err != nil {
			failures = append(
				failures,
				fmt.Sprintf("Failed to delete category %q", category.Name),
			)
		}
	}
	if err = cm.session.GuildRoleDelete(guildID, role.ID); err != nil {
		failures = append(
			failures,
			fmt.Sprintf("Failed to delete role %q", role.Name),
		)
	} else {
		cm.roleCache.Remove(guildID, role.ID)
	}

	if len(failures) > 0 {
		return &PartialFailure{Failures: failures}
	}
	cm.logger.Info("removed course", "guild_id", guildID, "course", role.Name)
	return nil
}

// RemoveAll removes every cached course. Each course's result is
// collected before the aggregate is computed; already-removed courses
// stay removed on partial failure.
func (cm *CourseManager) RemoveAll(guildID string) error {
	return cm.forEachCourse(guildID, cm.Remove)
}

// ClearAll clears every cached course, with the same aggregate
// semantics as RemoveAll.
func (cm *CourseManager) ClearAll(guildID string) error {
	return cm.forEachCourse(guildID, cm.Clear)
}

func (cm *CourseManager) forEachCourse(
	guildID string,
	op func(guildID string, roleID string) error,
) error {
	var courses []AssignableRole
	for _, role := range cm.store.Guild(guildID).AssignableRoles() {
		if role.Kind == RoleKindCourse {
			courses = append(courses, role)
		}
	}

	var failures []string
	for _, course := range courses {
		err := op(guildID, course.RoleID)
		if err == nil {
			continue
		}
		var partial *PartialFailure
		if errors.As(err, &partial) {
			failures = append(failures, partial.Failures...)
		} else {
			failures = append(
				failures,
				fmt.Sprintf("Course %q: %s", course.Name, err),
			)
		}
	}
	if len(failures) > 0 {
		return &PartialFailure{Failures: failures}
	}
	return nil
}

// Clear re-platforms a course: fresh text and voice channels replace
// the originals (same name, topic, position and parent), the course
// role is stripped from every non-bot holder, and the original
// channels are deleted. If any replacement channel cannot be created
// the operation aborts with originals untouched.
func (cm *CourseManager) Clear(guildID string, roleID string) error {
	state := cm.store.Guild(guildID)
	state.courseMu.Lock()
	defer state.courseMu.Unlock()

	role, _, channels, err := cm.resolveCourse(guildID, roleID)
	if err != nil {
		return err
	}

	log := cm.logger.With("guild_id", guildID, "course", role.Name)

	// text replacements first, then voice
	var ordered []*discordgo.Channel
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			ordered = append(ordered, ch)
		}
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildVoice {
			ordered = append(ordered, ch)
		}
	}

	var replacements []*discordgo.Channel
	for _, original := range ordered {
		replacement, createErr := cm.session.GuildChannelCreateComplex(
			guildID,
			discordgo.GuildChannelCreateData{
				Name:     original.Name,
				Type:     original.Type,
				Topic:    original.Topic,
				Position: original.Position,
				ParentID: original.ParentID,
			},
		)
		if createErr != nil {
			// abort: remove any replacements already created, leave
			// originals untouched
			for _, created := range replacements {
				if _, delErr := cm.session.ChannelDelete(created.ID); delErr != nil {
					log.Error(
						"error deleting replacement channel",
						tint.Err(delErr),
						"channel_id", created.ID,
					)
				}
			}
			return fmt.Errorf(
				"error creating replacement channel %q: %w",
				original.Name,
				createErr,
			)
		}
		replacements = append(replacements, replacement)
	}

	var failures []string
	failures = append(failures, cm.stripRoleFromMembers(guildID, role)...)

	for _, original := range ordered {
		if _, err = cm.session.ChannelDelete(original.ID); err != nil {
			failures = append(
				failures,
				fmt.Sprintf("Failed to delete channel %q", original.Name),
			)
		}
	}

	if len(failures) > 0 {
		return &PartialFailure{Failures: failures}
	}
	log.Info("cleared course")
	return nil
}

// stripRoleFromMembers removes the given role from every non-bot
// member currently holding it, returning a failure line per member
// that could not be updated.
func (cm *CourseManager) stripRoleFromMembers(
	guildID string,
	role *discordgo.Role,
) []string {
	var failures []string
	after := ""
	for {
		members, err := cm.session.GuildMembers(guildID, after, 1000)
		if err != nil {
			failures = append(
				failures,
				fmt.Sprintf("Failed to list members holding role %q", role.Name),
			)
			return failures
		}
		if len(members) == 0 {
			return failures
		}
		for _, member := range members {
			after = member.User.ID
			if member.User.Bot {
				continue
			}
			holding := false
			for _, memberRole := range member.Roles {
				if memberRole == role.ID {
					holding = true
					break
				}
			}
			if !holding {
				continue
			}
			if err = cm.session.GuildMemberRoleRemove(
				guildID,
				member.User.ID,
				role.ID,
			); err != nil {
				failures = append(
					failures,
					fmt.Sprintf(
						"Failed to remove role %q from %s",
						role.Name,
						member.User.Username,
					),
				)
			}
		}
		if len(members) < 1000 {
			return failures
		}
	}
}
