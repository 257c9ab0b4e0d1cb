package onboard

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// EnvConfig sources the flow configuration from the environment. It
// implements Config.
type EnvConfig struct {
	SigningKey         string        `env:"ONBOARD_SIGNING_KEY,required"`
	RegisterTokenTTL   time.Duration `env:"ONBOARD_REGISTER_TOKEN_TTL" envDefault:"15m"`
	AuthTokenTTL       time.Duration `env:"ONBOARD_AUTH_TOKEN_TTL" envDefault:"168h"`
	CodeTTL            time.Duration `env:"ONBOARD_CODE_TTL" envDefault:"2h"`
	ResendCooldown     time.Duration `env:"ONBOARD_RESEND_COOLDOWN" envDefault:"60s"`
	VerificationBypass bool          `env:"ONBOARD_VERIFICATION_BYPASS" envDefault:"false"`
	SMTPAddr           string        `env:"ONBOARD_SMTP_ADDR" envDefault:"localhost:25"`
	SMTPFrom           string        `env:"ONBOARD_SMTP_FROM" envDefault:"no-reply@localhost"`
	SMTPUsername       string        `env:"ONBOARD_SMTP_USERNAME"`
	SMTPPassword       string        `env:"ONBOARD_SMTP_PASSWORD"`
	DatabaseDSN        string        `env:"ONBOARD_DATABASE_DSN" envDefault:"file::memory:?cache=shared"`
}

// LoadConfig parses the environment into an EnvConfig.
func LoadConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment configuration")
	}
	return cfg, nil
}

func (c *EnvConfig) GetSigningKey() string { return c.SigningKey }

func (c *EnvConfig) GetRegisterTokenTTL() time.Duration { return c.RegisterTokenTTL }

func (c *EnvConfig) GetAuthTokenTTL() time.Duration { return c.AuthTokenTTL }

func (c *EnvConfig) GetCodeTTL() time.Duration { return c.CodeTTL }

func (c *EnvConfig) GetResendCooldown() time.Duration { return c.ResendCooldown }

func (c *EnvConfig) GetVerificationBypassEnabled() bool { return c.VerificationBypass }

// Notifier builds the SMTP notifier described by the config.
func (c *EnvConfig) Notifier() *SMTPNotifier {
	n := NewSMTPNotifier(c.SMTPAddr, c.SMTPFrom)
	if c.SMTPUsername != "" {
		n = n.WithPlainAuth(c.SMTPUsername, c.SMTPPassword)
	}
	return n
}
