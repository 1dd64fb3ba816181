package mail_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsend/quillsend-backend/internal/mail"
)

func TestNewSMTPSender_Validation(t *testing.T) {
	t.Parallel()

	validConfig := mail.Config{
		Host:     "smtp.example.com",
		Port:     587,
		Secure:   false,
		Username: "user@example.com",
		Password: "secret",
	}

	tests := []struct {
		name    string
		mutate  func(cfg *mail.Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(cfg *mail.Config) {},
		},
		{
			name:    "missing host",
			mutate:  func(cfg *mail.Config) { cfg.Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "zero port",
			mutate:  func(cfg *mail.Config) { cfg.Port = 0 },
			wantErr: "port must be between 1 and 65535",
		},
		{
			name:    "port too large",
			mutate:  func(cfg *mail.Config) { cfg.Port = 70000 },
			wantErr: "port must be between 1 and 65535",
		},
		{
			name:    "missing username",
			mutate:  func(cfg *mail.Config) { cfg.Username = "" },
			wantErr: "username is required",
		},
		{
			name:    "missing password",
			mutate:  func(cfg *mail.Config) { cfg.Password = "" },
			wantErr: "password is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig
			tt.mutate(&cfg)

			sender, err := mail.NewSMTPSender(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, mail.ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, sender)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, sender)
		})
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	valid := mail.Message{
		From:    "sender@example.com",
		To:      "rcpt@example.com",
		Subject: "hello",
		Text:    "body",
	}

	t.Run("valid text message", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, valid.Validate())
	})

	t.Run("valid html message", func(t *testing.T) {
		t.Parallel()
		msg := valid
		msg.Text = ""
		msg.HTML = "<p>body</p>"
		assert.NoError(t, msg.Validate())
	})

	t.Run("missing from", func(t *testing.T) {
		t.Parallel()
		msg := valid
		msg.From = ""
		assert.ErrorIs(t, msg.Validate(), mail.ErrSendFailed)
	})

	t.Run("missing recipient", func(t *testing.T) {
		t.Parallel()
		msg := valid
		msg.To = ""
		assert.ErrorIs(t, msg.Validate(), mail.ErrSendFailed)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		msg := valid
		msg.Text = ""
		assert.ErrorIs(t, msg.Validate(), mail.ErrSendFailed)
	})
}
