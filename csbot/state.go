package csbot

import (
	"sort"
	"strings"
	"sync"
)

// RoleKind classifies an assignable role as either a course role or a
// miscellaneous assignable role.
type RoleKind string

const (
	RoleKindCourse RoleKind = "course"
	RoleKindMisc   RoleKind = "misc"
)

// AssignableRole is a cache entry for a role members may self-assign.
type AssignableRole struct {
	Name   string   `json:"name"`
	RoleID string   `json:"role_id"`
	Kind   RoleKind `json:"kind"`
}

// GuildState holds the per-guild in-memory state: the assignable-role
// cache, the parsed guild configuration, and the location of the
// persisted config message. All fields are guarded by mu.
//
// courseMu is an advisory lock serializing course lifecycle operations
// (create/remove/clear) within the guild, so concurrent invocations
// can't interleave their remote calls.
type GuildState struct {
	mu              sync.RWMutex
	assignable      []AssignableRole
	config          *GuildConfig
	configChannelID string
	configMessageID string

	courseMu sync.Mutex
}

// Config returns the guild configuration, lazily creating a default
// configuration if none has been loaded.
func (g *GuildState) Config() *GuildConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.config == nil {
		g.config = defaultGuildConfig()
	}
	return g.config
}

// SetConfig replaces the guild configuration.
func (g *GuildState) SetConfig(cfg *GuildConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config = cfg
}

// ConfigMessage returns the channel and message IDs of the persisted
// configuration embed, if known.
func (g *GuildState) ConfigMessage() (channelID string, messageID string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.configChannelID, g.configMessageID
}

// SetConfigMessage records where the configuration embed lives.
func (g *GuildState) SetConfigMessage(channelID, messageID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.configChannelID = channelID
	g.configMessageID = messageID
}

// AssignableRoles returns a copy of the assignable-role cache.
func (g *GuildState) AssignableRoles() []AssignableRole {
	g.mu.RLock()
	defer g.mu.RUnlock()
	roles := make([]AssignableRole, len(g.assignable))
	copy(roles, g.assignable)
	return roles
}

// ReplaceAssignableRoles atomically replaces the assignable-role cache.
func (g *GuildState) ReplaceAssignableRoles(roles []AssignableRole) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assignable = roles
}

// AddAssignableRole appends a cache entry, replacing any existing entry
// with the same role ID.
func (g *GuildState) AddAssignableRole(role AssignableRole) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, existing := range g.assignable {
		if existing.RoleID == role.RoleID {
			g.assignable[i] = role
			return
		}
	}
	g.assignable = append(g.assignable, role)
}

// RemoveAssignableRole removes the cache entry with the given role ID.
// Returns false if no such entry exists, signaling the caller the cache
// has drifted and should be rebuilt.
func (g *GuildState) RemoveAssignableRole(roleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, existing := range g.assignable {
		if existing.RoleID == roleID {
			g.assignable = append(g.assignable[:i], g.assignable[i+1:]...)
			return true
		}
	}
	return false
}

// FindCourseRole returns the course cache entry whose name matches
// the given name, compared case-insensitively.
func (g *GuildState) FindCourseRole(name string) (AssignableRole, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, role := range g.assignable {
		if role.Kind == RoleKindCourse && strings.EqualFold(role.Name, name) {
			return role, true
		}
	}
	return AssignableRole{}, false
}

// GuildStateStore is a keyed store of per-guild state. Guild entries
// are created lazily on first access and live for the process lifetime.
type GuildStateStore struct {
	mu     sync.RWMutex
	guilds map[string]*GuildState
}

func newGuildStateStore() *GuildStateStore {
	return &GuildStateStore{guilds: map[string]*GuildState{}}
}

// Guild returns the state for the given guild ID, creating it if needed.
func (s *GuildStateStore) Guild(guildID string) *GuildState {
	s.mu.RLock()
	state, ok := s.guilds[guildID]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok = s.guilds[guildID]
	if !ok {
		state = &GuildState{}
		s.guilds[guildID] = state
	}
	return state
}

// GuildIDs returns the IDs of all guilds seen so far, sorted.
func (s *GuildStateStore) GuildIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.guilds))
	for id := range s.guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
