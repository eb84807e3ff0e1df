package csbot

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockDiscordSession is an in-memory DiscordSessionHandler used across
// the package tests. It keeps a fake guild (roles, channels, members,
// messages), counts calls per method, and can be told to fail specific
// methods via failOn.
type mockDiscordSession struct {
	mu        sync.Mutex
	botUserID string
	roles     []*discordgo.Role
	channels  []*discordgo.Channel
	members   []*discordgo.Member
	messages  map[string][]*discordgo.Message
	calls     map[string]int
	failOn    map[string]error
	// role names hidden from GuildRoles listings, simulating a listing
	// that lags behind a just-created role
	omitFromRoleList map[string]bool
	nextID           int
}

func newMockSession() *mockDiscordSession {
	return &mockDiscordSession{
		botUserID: "bot-user",
		messages:  map[string][]*discordgo.Message{},
		calls:     map[string]int{},
		failOn:    map[string]error{},
	}
}

func (m *mockDiscordSession) record(method string) error {
	m.calls[method]++
	return m.failOn[method]
}

func (m *mockDiscordSession) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// remoteCallCount sums calls that hit the fake guild's roles/channels.
func (m *mockDiscordSession) remoteCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *mockDiscordSession) newID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockDiscordSession) roleByID(id string) *discordgo.Role {
	for _, r := range m.roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (m *mockDiscordSession) channelByID(id string) *discordgo.Channel {
	for _, c := range m.channels {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *mockDiscordSession) Open() error  { return nil }
func (m *mockDiscordSession) Close() error { return nil }

func (m *mockDiscordSession) AddHandler(any) func() { return func() {} }

func (m *mockDiscordSession) SetLogLevel(slog.Level) error { return nil }

func (m *mockDiscordSession) SetHTTPClient(*http.Client) {}

func (m *mockDiscordSession) UpdateCustomStatus(string) error { return nil }

func (m *mockDiscordSession) ApplicationCommandBulkOverwrite(
	_ string,
	_ string,
	commands []*discordgo.ApplicationCommand,
	_ ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ApplicationCommandBulkOverwrite"); err != nil {
		return nil, err
	}
	return commands, nil
}

func (m *mockDiscordSession) Guild(
	guildID string,
	_ ...discordgo.RequestOption,
) (*discordgo.Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Guild"); err != nil {
		return nil, err
	}
	return &discordgo.Guild{ID: guildID, Name: "Test Guild"}, nil
}

func (m *mockDiscordSession) GuildRoles(
	string,
	...discordgo.RequestOption,
) ([]*discordgo.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GuildRoles"); err != nil {
		return nil, err
	}
	roles := make([]*discordgo.Role, 0, len(m.roles))
	for _, role := range m.roles {
		if m.omitFromRoleList[role.Name] {
			continue
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (m *mockDiscordSession) GuildRoleCreate(
	_ string,
	data *discordgo.RoleParams,
	_ ...discordgo.RequestOption,
) (*discordgo.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GuildRoleCreate"); err != nil {
		return nil, err
	}
	role := &discordgo.Role{
		ID:   m.newID("role"),
		Name: data.Name,
	}
	if data.Color != nil {
		role.Color = *data.Color
	}
	if data.Hoist != nil {
		role.Hoist = *data.Hoist
	}
	if data.Mentionable != nil {
		role.Mentionable = *data.Mentionable
	}
	m.roles = append(m.roles, role)
	return role, nil
}

func (m *mockDiscordSession) GuildRoleReorder(
	_ string,
	roles []*discordgo.Role,
	_ ...discordgo.RequestOption,
) ([]*discordgo.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GuildRoleReorder"); err != nil {
		return nil, err
	}
	return roles, nil
}

func (m *mockDiscordSession) GuildRoleDelete(
	_ string,
	roleID string,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GuildRoleDelete"); err != nil {
		return err
	}
	for i, role := range m.roles {
		if role.ID == roleID {
			m.roles = append(m.roles[:i], m.roles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("role not found: %s", roleID)
}

func (m *mockDiscordSession) GuildMembers(
	_ string,
	after string,
	limit int,
	_ ...discordgo.RequestOption,
) ([]*discordgo.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GuildMembers"); err != nil {
		return nil, err
	}
	start := 0
	if after != "" {
		for i, member := range m.members {
			if member.User.ID == after {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(m.members) {
		end = len(m.members)
	}
	if start >= len(m.members) {
		return nil, nil
	}
	return m.members[start:end], nil
}

func (m *mockDiscordSession) GuildMemberRoleAdd(
	_ string,
	userID string,
	roleID string,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GuildMemberRoleAdd"); err != nil {
		return err
	}
	for _, member := range m.members {
		if member.User.ID == userID {
			member.Roles = append(member.Roles, roleID)
			return nil
		}
	}
	return fmt.Errorf("member not found: %s", userID)
}

func (m *mockDiscordSession) GuildMemberRoleRemove(
	_ string,
	userID string,
	roleID string,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GuildMemberRoleRemove"); err != nil {
		return err
	}
	for _, member := range m.members {
		if member.User.ID != userID {
			continue
		}
		for i, r := range member.Roles {
			if r == roleID {
				member.Roles = append(member.Roles[:i], member.Roles[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (m *mockDiscordSession) GuildChannels(
	string,
	...discordgo.RequestOption,
) ([]*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GuildChannels"); err != nil {
		return nil, err
	}
	channels := make([]*discordgo.Channel, len(m.channels))
	copy(channels, m.channels)
	return channels, nil
}

func (m *mockDiscordSession) GuildChannelCreateComplex(
	_ string,
	data discordgo.GuildChannelCreateData,
	_ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GuildChannelCreateComplex"); err != nil {
		return nil, err
	}
	if err, ok := m.failOn["create:"+data.Name]; ok && err != nil {
		return nil, err
	}
	ch := &discordgo.Channel{
		ID:       m.newID("channel"),
		Name:     data.Name,
		Type:     data.Type,
		Topic:    data.Topic,
		ParentID: data.ParentID,
		Position: data.Position,
	}
	m.channels = append(m.channels, ch)
	return ch, nil
}

func (m *mockDiscordSession) Channel(
	channelID string,
	_ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Channel"); err != nil {
		return nil, err
	}
	ch := m.channelByID(channelID)
	if ch == nil {
		return nil, fmt.Errorf("channel not found: %s", channelID)
	}
	return ch, nil
}

func (m *mockDiscordSession) ChannelDelete(
	channelID string,
	_ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ChannelDelete"); err != nil {
		return nil, err
	}
	ch := m.channelByID(channelID)
	if ch == nil {
		return nil, fmt.Errorf("channel not found: %s", channelID)
	}
	if err, ok := m.failOn["delete:"+ch.Name]; ok && err != nil {
		return nil, err
	}
	for i, existing := range m.channels {
		if existing.ID == channelID {
			m.channels = append(m.channels[:i], m.channels[i+1:]...)
			break
		}
	}
	return ch, nil
}

func (m *mockDiscordSession) ChannelPermissionSet(
	channelID string,
	targetID string,
	targetType discordgo.PermissionOverwriteType,
	allow int64,
	deny int64,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ChannelPermissionSet"); err != nil {
		return err
	}
	ch := m.channelByID(channelID)
	if ch == nil {
		return fmt.Errorf("channel not found: %s", channelID)
	}
	ch.PermissionOverwrites = append(
		ch.PermissionOverwrites,
		&discordgo.PermissionOverwrite{
			ID:    targetID,
			Type:  targetType,
			Allow: allow,
			Deny:  deny,
		},
	)
	return nil
}

func (m *mockDiscordSession) ChannelMessages(
	channelID string,
	limit int,
	_ string,
	_ string,
	_ string,
	_ ...discordgo.RequestOption,
) ([]*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ChannelMessages"); err != nil {
		return nil, err
	}
	msgs := m.messages[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (m *mockDiscordSession) ChannelMessageSend(
	channelID string,
	content string,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ChannelMessageSend"); err != nil {
		return nil, err
	}
	msg := &discordgo.Message{
		ID:        m.newID("message"),
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: m.botUserID},
	}
	m.messages[channelID] = append(m.messages[channelID], msg)
	return msg, nil
}

func (m *mockDiscordSession) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ChannelMessageSendComplex"); err != nil {
		return nil, err
	}
	msg := &discordgo.Message{
		ID:        m.newID("message"),
		ChannelID: channelID,
		Content:   data.Content,
		Embeds:    data.Embeds,
		Author:    &discordgo.User{ID: m.botUserID},
	}
	m.messages[channelID] = append(m.messages[channelID], msg)
	return msg, nil
}

func (m *mockDiscordSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ChannelMessageSendEmbed"); err != nil {
		return nil, err
	}
	msg := &discordgo.Message{
		ID:        m.newID("message"),
		ChannelID: channelID,
		Embeds:    []*discordgo.MessageEmbed{embed},
		Author:    &discordgo.User{ID: m.botUserID},
	}
	m.messages[channelID] = append(m.messages[channelID], msg)
	return msg, nil
}

func (m *mockDiscordSession) ChannelMessageEditEmbed(
	channelID string,
	messageID string,
	embed *discordgo.MessageEmbed,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ChannelMessageEditEmbed"); err != nil {
		return nil, err
	}
	for _, msg := range m.messages[channelID] {
		if msg.ID == messageID {
			msg.Embeds = []*discordgo.MessageEmbed{embed}
			return msg, nil
		}
	}
	return nil, fmt.Errorf("message not found: %s", messageID)
}

func (m *mockDiscordSession) MessageReactionAdd(
	string,
	string,
	string,
	...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("MessageReactionAdd")
}

func (m *mockDiscordSession) InteractionRespond(
	_ *discordgo.Interaction,
	_ *discordgo.InteractionResponse,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("InteractionRespond")
}

func (m *mockDiscordSession) InteractionResponseEdit(
	_ *discordgo.Interaction,
	_ *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("InteractionResponseEdit"); err != nil {
		return nil, err
	}
	return &discordgo.Message{ID: m.newID("message")}, nil
}
