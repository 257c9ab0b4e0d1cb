package onboard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	onboard "github.com/venlock/go-onboard"
)

func TestLoadConfig(t *testing.T) {
	t.Run("fails without a signing key", func(t *testing.T) {
		_, err := onboard.LoadConfig()
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("ONBOARD_SIGNING_KEY", "test-key")

		cfg, err := onboard.LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "test-key", cfg.GetSigningKey())
		assert.Equal(t, 15*time.Minute, cfg.GetRegisterTokenTTL())
		assert.Equal(t, 168*time.Hour, cfg.GetAuthTokenTTL())
		assert.Equal(t, 2*time.Hour, cfg.GetCodeTTL())
		assert.Equal(t, 60*time.Second, cfg.GetResendCooldown())
		assert.False(t, cfg.GetVerificationBypassEnabled())
	})

	t.Run("reads overrides from the environment", func(t *testing.T) {
		t.Setenv("ONBOARD_SIGNING_KEY", "test-key")
		t.Setenv("ONBOARD_REGISTER_TOKEN_TTL", "30m")
		t.Setenv("ONBOARD_CODE_TTL", "1h")
		t.Setenv("ONBOARD_VERIFICATION_BYPASS", "true")

		cfg, err := onboard.LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 30*time.Minute, cfg.GetRegisterTokenTTL())
		assert.Equal(t, time.Hour, cfg.GetCodeTTL())
		assert.True(t, cfg.GetVerificationBypassEnabled())
	})
}
