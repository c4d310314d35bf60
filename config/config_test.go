package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kalinanews/newsroom/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NEWSROOM_ENV", "development")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "http://localhost:3000,http://localhost:5173", cfg.AllowedOrigins())
	assert.True(t, cfg.IsDevelopment())
	assert.NotEmpty(t, cfg.JWTSecret, "development gets a fallback secret")

	tc, err := cfg.TokenConfig()
	require.NoError(t, err)
	assert.Equal(t, "HS256", tc.SigningMethod)
	assert.Equal(t, "newsroom", tc.Issuer)
}

func TestUnsetEnvIsProduction(t *testing.T) {
	t.Setenv("NEWSROOM_JWT_SECRET", "prod-secret")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "prod-secret", cfg.JWTSecret)
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte(
		"NEWSROOM_ENV=production\n"+
			"NEWSROOM_JWT_SECRET=file-secret\n"+
			"NEWSROOM_JWT_ALGORITHM=hs512\n"+
			"NEWSROOM_JWT_TTL=2h\n"+
			"NEWSROOM_PAGE_LIMIT_MAX=25\n",
	), 0o600))

	// godotenv does not override variables that are already set
	t.Setenv("NEWSROOM_PAGE_LIMIT_MAX", "30")
	t.Cleanup(func() {
		for _, k := range []string{"NEWSROOM_ENV", "NEWSROOM_JWT_SECRET", "NEWSROOM_JWT_ALGORITHM", "NEWSROOM_JWT_TTL"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := config.Load(file)
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "file-secret", cfg.JWTSecret)
	assert.Equal(t, 30, cfg.PageLimitMax)

	tc, err := cfg.TokenConfig()
	require.NoError(t, err)
	assert.Equal(t, "HS512", tc.SigningMethod)
	assert.Equal(t, 2*time.Hour, tc.TTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"secret required in production", map[string]string{"NEWSROOM_ENV": "production"}, "JWT_SECRET"},
		{"secret required when env is unset", map[string]string{}, "JWT_SECRET"},
		{"unknown algorithm", map[string]string{"NEWSROOM_JWT_SECRET": "s", "NEWSROOM_JWT_ALGORITHM": "RS256"}, "signing method"},
		{"bcrypt cost", map[string]string{"NEWSROOM_BCRYPT_COST": "99"}, "bcrypt cost"},
		{"driver", map[string]string{"NEWSROOM_DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"page limit", map[string]string{"NEWSROOM_PAGE_LIMIT_MAX": "0"}, "PAGE_LIMIT_MAX"},
		{"api prefix", map[string]string{"NEWSROOM_API_PREFIX": "api"}, "API_PREFIX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	t.Run("missing env file is fine", func(t *testing.T) {
		t.Setenv("NEWSROOM_JWT_SECRET", "s")
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.env"))
		assert.NoError(t, err)
	})
}
