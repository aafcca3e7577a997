package reader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legaultmarc/fast-gzip/pkg/codec"
	gferrors "github.com/legaultmarc/fast-gzip/pkg/common/errors"
	"github.com/legaultmarc/fast-gzip/pkg/streaming/chunk"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, chunk.DefaultSize, cfg.ChunkSize)
	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, codec.FormatGzip, cfg.Format)
	assert.False(t, cfg.KeepTerminator)
	assert.NotNil(t, cfg.Logger)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{ChunkSize: 16}.withDefaults()

	assert.Equal(t, 16, cfg.ChunkSize)
	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, codec.FormatGzip, cfg.Format)
	assert.Equal(t, "reader", cfg.Name)
	assert.NotNil(t, cfg.Logger)
	assert.Zero(t, cfg.MaxRetries, "zero retries is a valid explicit choice")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"negative chunk size", func(c *Config) { c.ChunkSize = -1 }, "ChunkSize"},
		{"negative capacity", func(c *Config) { c.Capacity = -3 }, "Capacity"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "MaxRetries"},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -time.Second }, "RetryDelay"},
		{"negative read timeout", func(c *Config) { c.ReadTimeout = -time.Second }, "ReadTimeout"},
		{"negative close timeout", func(c *Config) { c.CloseTimeout = -time.Second }, "CloseTimeout"},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }, "RateLimit"},
		{"command without path", func(c *Config) { c.Command = codec.Command{Args: []string{"-dc"}} }, "Command.Path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)

			var verr *gferrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestConfig_UnknownFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "rar"

	assert.ErrorIs(t, cfg.Validate(), gferrors.ErrInvalidConfiguration)

	_, err := OpenWithConfig("whatever.rar", cfg)
	assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration, "configuration is checked before the file")
}

func TestConfig_CommandSkipsFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "rar"
	cfg.Command = codec.Command{Path: "unrar", Args: []string{"p"}}

	assert.NoError(t, cfg.Validate())
}

func TestNewWithConfig_NilSource(t *testing.T) {
	_, err := NewWithConfig(nil, DefaultConfig())
	assert.True(t, gferrors.IsValidationError(err))
}
