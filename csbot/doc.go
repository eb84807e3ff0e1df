// Package csbot implements a Discord bot for university CS servers.
//
// The bot manages "courses" — a role, a category, and a text/voice
// channel pair provisioned and torn down together — persists per-guild
// configuration inside an embed in a well-known channel, caches
// assignable roles for autocomplete and self-assignment, and runs an
// email-OTP member verification flow.
package csbot

// Build metadata, set via -ldflags.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)
