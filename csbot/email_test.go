package csbot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSMTPMailerBody(t *testing.T) {
	mailer := newSMTPMailer(
		&VerificationConfig{
			CodeTTL:      10 * time.Minute,
			ContactEmail: "csc-discord@calpoly.edu",
		},
		testLogger(),
	)

	body := mailer.body("Alice", "123456")
	assert.Contains(t, body, "Hi Alice,")
	assert.Contains(t, body, "<b>123456</b>")
	assert.Contains(t, body, "10m0s")
	assert.Contains(t, body, "mailto:csc-discord@calpoly.edu")
}

func TestSMTPMailerBodyNoContact(t *testing.T) {
	mailer := newSMTPMailer(
		&VerificationConfig{CodeTTL: 10 * time.Minute},
		testLogger(),
	)

	body := mailer.body("Alice", "123456")
	assert.NotContains(t, body, "mailto:")
}
