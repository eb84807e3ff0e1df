package csbot

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Component and modal custom IDs for the verification flow.
const (
	verifyButtonID     = "verify_start"
	verifyEmailModalID = "verify_email_modal"
	verifyEmailInputID = "verify_email"
	verifyCodeModalID  = "verify_code_modal"
	verifyCodeInputID  = "verify_code"
)

var (
	// ErrVerificationDisabled indicates the verification flow isn't
	// configured.
	ErrVerificationDisabled = errors.New("verification is not enabled")

	// ErrVerifiedRoleNotFound indicates the guild has no role matching
	// the configured verified-role name.
	ErrVerifiedRoleNotFound = errors.New("verified role not found")
)

// pendingVerification tracks a code that has been emailed but not yet
// entered.
type pendingVerification struct {
	guildID   string
	email     string
	code      string
	expiresAt time.Time
}

// VerificationManager runs the email-OTP verification flow: a
// persistent embed with a button, an email modal, a mailed 6-digit
// code, and a code modal. On a correct code within the TTL, the
// configured verified role is granted and a Verification row recorded.
type VerificationManager struct {
	session DiscordSessionHandler
	config  *VerificationConfig
	mailer  Mailer
	writeDB *database
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingVerification

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func newVerificationManager(
	session DiscordSessionHandler,
	config *VerificationConfig,
	mailer Mailer,
	writeDB *database,
	logger *slog.Logger,
) *VerificationManager {
	return &VerificationManager{
		session:  session,
		config:   config,
		mailer:   mailer,
		writeDB:  writeDB,
		logger:   logger.With(loggerNameKey, "verification"),
		pending:  map[string]*pendingVerification{},
		limiters: map[string]*rate.Limiter{},
	}
}

// generateCode returns a random 6-digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// sendLimiter returns the per-user rate limiter for verification
// emails.
func (v *VerificationManager) sendLimiter(userID string) *rate.Limiter {
	v.limiterMu.Lock()
	defer v.limiterMu.Unlock()
	limiter, ok := v.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(
			rate.Limit(v.config.SendsPerMinute/60.0),
			1,
		)
		v.limiters[userID] = limiter
	}
	return limiter
}

// PostPrompt sends the verification embed and button to the given
// channel.
func (v *VerificationManager) PostPrompt(channelID string) error {
	if !v.config.Enabled {
		return ErrVerificationDisabled
	}
	_, err := v.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title: "Member Verification",
				Description: fmt.Sprintf(
					"Click the button below to verify with a `%s` email "+
						"address. You'll get a code by email; click the "+
						"button again to enter it.",
					v.config.DomainSuffix,
				),
			},
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Verify",
						Style:    discordgo.PrimaryButton,
						CustomID: verifyButtonID,
					},
				},
			},
		},
	})
	return err
}

// HandleButton responds to the verification button: users without an
// outstanding code get the email modal, users with one get the code
// modal.
func (v *VerificationManager) HandleButton(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) error {
	if !v.config.Enabled {
		return v.respondEphemeral(i, "Verification is not available right now.")
	}
	user := interactionUser(i)

	v.mu.Lock()
	p, hasPending := v.pending[user.ID]
	if hasPending && time.Now().After(p.expiresAt) {
		delete(v.pending, user.ID)
		hasPending = false
	}
	v.mu.Unlock()

	if hasPending {
		return v.openCodeModal(i)
	}
	return v.openEmailModal(ctx, i)
}

func (v *VerificationManager) openEmailModal(
	_ context.Context,
	i *discordgo.InteractionCreate,
) error {
	return v.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: verifyEmailModalID,
			Title:    "Email Verification",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    verifyEmailInputID,
							Label:       "School email address",
							Style:       discordgo.TextInputShort,
							Placeholder: "you@example" + v.config.DomainSuffix,
							Required:    true,
							MaxLength:   254,
						},
					},
				},
			},
		},
	})
}

func (v *VerificationManager) openCodeModal(
	i *discordgo.InteractionCreate,
) error {
	return v.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: verifyCodeModalID,
			Title:    "Enter Verification Code",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:  verifyCodeInputID,
							Label:     "6-digit code from your email",
							Style:     discordgo.TextInputShort,
							Required:  true,
							MinLength: 6,
							MaxLength: 6,
						},
					},
				},
			},
		},
	})
}

// modalInputValue digs the value of a text input out of a modal submit
// payload.
func modalInputValue(
	data discordgo.ModalSubmitInteractionData,
	customID string,
) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			input, inputOK := component.(*discordgo.TextInput)
			if inputOK && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

// HandleModalSubmit routes a modal submission to the email or code
// handler by custom ID.
func (v *VerificationManager) HandleModalSubmit(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) error {
	data := i.ModalSubmitData()
	switch data.CustomID {
	case verifyEmailModalID:
		return v.handleEmailSubmit(ctx, i, data)
	case verifyCodeModalID:
		return v.handleCodeSubmit(ctx, i, data)
	default:
		return fmt.Errorf("unknown modal: %s", data.CustomID)
	}
}

func (v *VerificationManager) handleEmailSubmit(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	data discordgo.ModalSubmitInteractionData,
) error {
	user := interactionUser(i)
	email := strings.TrimSpace(
		strings.ToLower(modalInputValue(data, verifyEmailInputID)),
	)

	if !strings.HasSuffix(email, v.config.DomainSuffix) {
		return v.respondEphemeral(
			i,
			fmt.Sprintf(
				"That doesn't look like a `%s` address. Try again with "+
					"your school email.",
				v.config.DomainSuffix,
			),
		)
	}

	if !v.sendLimiter(user.ID).Allow() {
		return v.respondEphemeral(
			i,
			"You're requesting codes too quickly. Wait a minute and try again.",
		)
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("error generating verification code: %w", err)
	}

	v.mu.Lock()
	v.pending[user.ID] = &pendingVerification{
		guildID:   i.GuildID,
		email:     email,
		code:      code,
		expiresAt: time.Now().Add(v.config.CodeTTL),
	}
	v.mu.Unlock()

	displayName := user.Username
	if i.Member != nil && i.Member.Nick != "" {
		displayName = i.Member.Nick
	}
	if err = v.mailer.Send(ctx, email, displayName, code); err != nil {
		v.mu.Lock()
		delete(v.pending, user.ID)
		v.mu.Unlock()
		v.logger.Error("error sending verification email", tint.Err(err))
		return v.respondEphemeral(
			i,
			"Couldn't send the verification email. Try again later.",
		)
	}

	v.logger.Info(
		"sent verification code",
		"user_id", user.ID,
		"guild_id", i.GuildID,
	)
	return v.respondEphemeral(
		i,
		fmt.Sprintf(
			"Code sent to `%s`! Click the Verify button again to enter it.",
			email,
		),
	)
}

func (v *VerificationManager) handleCodeSubmit(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	data discordgo.ModalSubmitInteractionData,
) error {
	user := interactionUser(i)
	entered := strings.TrimSpace(modalInputValue(data, verifyCodeInputID))

	v.mu.Lock()
	p, ok := v.pending[user.ID]
	if ok && time.Now().After(p.expiresAt) {
		delete(v.pending, user.ID)
		ok = false
	}
	v.mu.Unlock()

	if !ok {
		return v.respondEphemeral(
			i,
			"Your code expired. Click the Verify button to request a new one.",
		)
	}
	if entered != p.code {
		return v.respondEphemeral(i, "That code doesn't match. Try again.")
	}

	v.mu.Lock()
	delete(v.pending, user.ID)
	v.mu.Unlock()

	roleID, err := v.verifiedRoleID(i.GuildID)
	if err != nil {
		v.logger.Error("error resolving verified role", tint.Err(err))
		return v.respondEphemeral(
			i,
			"Verified, but I couldn't find the verified role. "+
				"Ask a moderator for help.",
		)
	}
	if err = v.session.GuildMemberRoleAdd(i.GuildID, user.ID, roleID); err != nil {
		v.logger.Error("error granting verified role", tint.Err(err))
		return v.respondEphemeral(
			i,
			"Verified, but I couldn't assign the role. Ask a moderator for help.",
		)
	}

	if err = v.recordVerification(ctx, i.GuildID, user, p.email, roleID); err != nil {
		v.logger.Error("error recording verification", tint.Err(err))
	}

	v.logger.Info(
		"verified member",
		"user_id", user.ID,
		"guild_id", i.GuildID,
	)
	return v.respondEphemeral(i, "You're verified! Welcome aboard.")
}

// recordVerification upserts the member's Verification row, so a
// member re-verifying with a new address updates their existing record
// instead of accumulating duplicates.
func (v *VerificationManager) recordVerification(
	ctx context.Context,
	guildID string,
	user *discordgo.User,
	email string,
	roleID string,
) error {
	var existing Verification
	err := v.writeDB.DB().
		Where("guild_id = ? AND user_id = ?", guildID, user.ID).
		First(&existing).Error
	switch {
	case err == nil:
		existing.Username = user.Username
		existing.Email = email
		existing.RoleID = roleID
		_, err = v.writeDB.Save(ctx, &existing)
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		_, err = v.writeDB.Create(ctx, &Verification{
			GuildID:  guildID,
			UserID:   user.ID,
			Username: user.Username,
			Email:    email,
			RoleID:   roleID,
		})
		return err
	default:
		return err
	}
}

// verifiedRoleID resolves the configured verified-role name to a role
// ID in the given guild.
func (v *VerificationManager) verifiedRoleID(guildID string) (string, error) {
	roles, err := v.session.GuildRoles(guildID)
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if strings.EqualFold(role.Name, v.config.VerifiedRoleName) {
			return role.ID, nil
		}
	}
	return "", fmt.Errorf(
		"%w: %s",
		ErrVerifiedRoleNotFound,
		v.config.VerifiedRoleName,
	)
}

func (v *VerificationManager) respondEphemeral(
	i *discordgo.InteractionCreate,
	content string,
) error {
	return v.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
