package csbot

import (
	"github.com/bwmarrin/discordgo"
)

// Slash command names.
const (
	CommandRoster       = "roster"
	CommandConfig       = "config"
	CommandRole         = "role"
	CommandVerification = "verification"
	CommandServer       = "server"
	CommandUser         = "user"
	CommandPing         = "ping"
)

// /roster subcommands.
const (
	rosterSubcommandAdd       = "add"
	rosterSubcommandRemove    = "remove"
	rosterSubcommandRemoveAll = "removeall"
	rosterSubcommandClear     = "clear"
	rosterSubcommandClearAll  = "clearall"
)

// /config subcommands, matching the persisted config field names.
const (
	configSubcommandWelcomeChannel  = "welcome-channel"
	configSubcommandWelcomeMessage  = "welcome-message"
	configSubcommandGoodbyeMessage  = "goodbye-message"
	configSubcommandRequestsChannel = "requests-channel"
	configSubcommandMoreAssignables = "more-assignables"
	configSubcommandBaseRolePos     = "base-role-pos"
	configSubcommandShow            = "show"
)

// Option names.
const (
	optionCourseNumber = "number"
	optionInstructor   = "instructor"
	optionCourse       = "course"
	optionRole         = "role"
	optionChannel      = "channel"
	optionValue        = "value"
)

// Course numbers are 3-digit by convention; channel names are derived
// from them.
const (
	courseNumberMin = 100
	courseNumberMax = 999
)

// applicationCommands returns the full set of slash commands the bot
// registers.
func applicationCommands() []*discordgo.ApplicationCommand {
	rosterPerms := int64(
		discordgo.PermissionManageChannels | discordgo.PermissionManageRoles,
	)
	adminPerms := int64(discordgo.PermissionManageServer)
	courseNumberMinValue := float64(courseNumberMin)
	courseNumberMaxValue := float64(courseNumberMax)
	basePosMinValue := float64(0)

	return []*discordgo.ApplicationCommand{
		{
			Name:                     CommandRoster,
			Description:              "Manage the course roster",
			Type:                     discordgo.ChatApplicationCommand,
			DefaultMemberPermissions: &rosterPerms,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        rosterSubcommandAdd,
					Description: "Add a course (role, category and channels)",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        optionCourseNumber,
							Description: "3-digit course number (e.g. 357)",
							Required:    true,
							MinValue:    &courseNumberMinValue,
							MaxValue:    courseNumberMaxValue,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionInstructor,
							Description: "Instructor name (e.g. Smith)",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        rosterSubcommandRemove,
					Description: "Remove a course and all of its channels",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionString,
							Name:         optionCourse,
							Description:  "Course to remove",
							Required:     true,
							Autocomplete: true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        rosterSubcommandRemoveAll,
					Description: "Remove every course",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        rosterSubcommandClear,
					Description: "Reset a course's channels and membership",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionString,
							Name:         optionCourse,
							Description:  "Course to clear",
							Required:     true,
							Autocomplete: true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        rosterSubcommandClearAll,
					Description: "Reset every course's channels and membership",
				},
			},
		},
		{
			Name:                     CommandConfig,
			Description:              "View or edit the server configuration",
			Type:                     discordgo.ChatApplicationCommand,
			DefaultMemberPermissions: &adminPerms,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        configSubcommandWelcomeChannel,
					Description: "Set the channel for welcome/goodbye messages",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        optionChannel,
							Description: "Text channel for welcome messages",
							Required:    true,
							ChannelTypes: []discordgo.ChannelType{
								discordgo.ChannelTypeGuildText,
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        configSubcommandWelcomeMessage,
					Description: "Set the welcome message ({user} = mention)",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionValue,
							Description: "Message template",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        configSubcommandGoodbyeMessage,
					Description: "Set the goodbye message ({user} = name, {n} = newline)",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionValue,
							Description: "Message template",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        configSubcommandRequestsChannel,
					Description: "Set the channel for member requests",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        optionChannel,
							Description: "Text channel for requests",
							Required:    true,
							ChannelTypes: []discordgo.ChannelType{
								discordgo.ChannelTypeGuildText,
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        configSubcommandMoreAssignables,
					Description: "Set the regex matching extra assignable roles",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        optionValue,
							Description: "Regular expression (empty disables)",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        configSubcommandBaseRolePos,
					Description: "Set the position new course roles are placed at",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        optionValue,
							Description: "Role list position",
							Required:    true,
							MinValue:    &basePosMinValue,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        configSubcommandShow,
					Description: "Show the current configuration",
				},
			},
		},
		{
			Name:        CommandRole,
			Description: "Join or leave an assignable role",
			Type:        discordgo.ChatApplicationCommand,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         optionRole,
					Description:  "Role to toggle",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		{
			Name:                     CommandVerification,
			Description:              "Post the member verification prompt",
			Type:                     discordgo.ChatApplicationCommand,
			DefaultMemberPermissions: &adminPerms,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        optionChannel,
					Description: "Channel to post in (defaults to here)",
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:        CommandServer,
			Description: "Show info about this server",
			Type:        discordgo.ChatApplicationCommand,
		},
		{
			Name:        CommandUser,
			Description: "Show info about your account",
			Type:        discordgo.ChatApplicationCommand,
		},
		{
			Name:        CommandPing,
			Description: "Check that the bot is responsive",
			Type:        discordgo.ChatApplicationCommand,
		},
	}
}
