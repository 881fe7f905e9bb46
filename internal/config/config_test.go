package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"velora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("VELORA_TEST_DB", "test.db")

	yamlContent := `
app:
  name: velora
database:
  path: "${VELORA_TEST_DB}"
rental:
  timezone: "UTC"
  max_booking_days: 180
telegram:
  bot_token: "test_token"
  manager_chat_ids: [111, 222]
api:
  enabled: true
  auth:
    api_keys:
      - key: "k1"
        name: "admin"
        permissions: ["admin"]
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	// Mock .env file
	require.NoError(t, os.WriteFile(".env", []byte(""), 0o644))
	defer os.Remove(".env")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test.db", cfg.Database.Path)
	assert.Equal(t, 180, cfg.Rental.MaxBookingDays)
	assert.Equal(t, []int64{111, 222}, cfg.Telegram.ManagerChatIDs)
	assert.True(t, cfg.API.Auth.Enabled)
	assert.True(t, cfg.API.HTTP.Enabled)
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, []string{"admin"}, cfg.API.Auth.APIKeys[0].Permissions)
}

func TestLoadConfig_WithoutEnvFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("database:\n  path: app.db\n"), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Rental.Timezone)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "path"},
			Rental:   RentalConfig{Timezone: "UTC"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing db path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Rental.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "negative horizon", mutate: func(c *Config) { c.Rental.MaxBookingDays = -1 }, wantErr: true},
		{
			name: "empty api key",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = true
				c.API.Auth.APIKeys = []APIClientKey{{Name: "broken"}}
			},
			wantErr: true,
		},
		{
			name:    "manager chats without token",
			mutate:  func(c *Config) { c.Telegram.ManagerChatIDs = []int64{1} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.False(t, cfg.API.Auth.Enabled)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "UTC", cfg.Rental.Timezone)
	assert.Equal(t, models.DefaultMaxBookingDays, cfg.Rental.MaxBookingDays)
	assert.Equal(t, models.DefaultAvailabilityDays, cfg.Rental.AvailabilityDays)
	assert.Equal(t, models.BookingRateLimitAttempts, cfg.Rental.BookingRateLimit.Attempts)
	assert.Equal(t, models.WorkerQueueSize, cfg.Worker.QueueSize)
	assert.Equal(t, "configs/dresses.yaml", cfg.Catalog.SeedPath)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestValidateDresses(t *testing.T) {
	tests := []struct {
		name    string
		dresses []models.WeddingDress
		wantErr bool
	}{
		{
			name: "Valid dresses",
			dresses: []models.WeddingDress{
				{ID: "d1", Name: "Malika", RentPrice: 800000},
				{ID: "d2", Name: "Shahzoda", RentPrice: 700000},
			},
		},
		{
			name: "Duplicate ID",
			dresses: []models.WeddingDress{
				{ID: "d1", Name: "Malika", RentPrice: 1},
				{ID: "d1", Name: "Shahzoda", RentPrice: 1},
			},
			wantErr: true,
		},
		{
			name:    "Empty ID",
			dresses: []models.WeddingDress{{Name: "Malika", RentPrice: 1}},
			wantErr: true,
		},
		{
			name:    "Zero rent price",
			dresses: []models.WeddingDress{{ID: "d1", Name: "Malika"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDresses(tt.dresses)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDresses() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
