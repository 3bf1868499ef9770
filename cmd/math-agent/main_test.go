package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/math-rag-agent/config"
	"github.com/upb/math-rag-agent/middleware"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ObservabilityConfig
		wantErr string
	}{
		{name: "default json logger", cfg: config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"}},
		{name: "development console logger", cfg: config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"}},
		{name: "defaults when not set", cfg: config.ObservabilityConfig{}},
		{name: "invalid log level", cfg: config.ObservabilityConfig{LogLevel: "loud", LogFormat: "json"}, wantErr: "invalid log level"},
		{name: "invalid log format", cfg: config.ObservabilityConfig{LogLevel: "info", LogFormat: "xml"}, wantErr: "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := initLogger(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Nil(t, logger)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			_ = logger.Sync()
		})
	}
}

func TestIssueAdminToken(t *testing.T) {
	t.Run("token validates with the admin role", func(t *testing.T) {
		cfg := config.AuthConfig{JWTSecret: "cli-secret", Issuer: "math-rag-agent"}

		token, err := issueAdminToken(cfg, "ops", time.Hour)
		require.NoError(t, err)

		validator, err := middleware.NewHMACValidator(cfg.JWTSecret, cfg.Issuer)
		require.NoError(t, err)
		claims, err := validator.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "ops", claims.Sub)
		assert.True(t, claims.HasRole("admin"))
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := issueAdminToken(config.AuthConfig{}, "ops", time.Hour)
		assert.Error(t, err)
	})
}
