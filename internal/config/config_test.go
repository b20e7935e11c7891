package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "valid_full_config",
			yaml: `
request_timeout: "5s"
insecure_skip_verify: false
env_files: ["/tmp/a.env"]
monitor:
  state_file: "/tmp/state.json"
  min_disk_space_gb: 25
  notify_cooldown: "2h"
  metrics_file: "/tmp/homelab.prom"
notification_channels:
  - name: "ops"
    type: "gotify"
    config:
      url: "https://gotify.example.com"
      priority: 4
portainer:
  backup_dir: "/backups"
  retention_days: 7
  max_backups: 3
  remote:
    type: "gdrive"
plex:
  library_section: 2
  count: 5
templates:
  daily_summary: "{{ len .Issues }} issues"
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
				assert.False(t, cfg.Insecure)
				assert.Equal(t, []string{"/tmp/a.env"}, cfg.EnvFiles)
				assert.Equal(t, "/tmp/state.json", cfg.Monitor.StateFile)
				assert.Equal(t, 25.0, cfg.Monitor.MinDiskSpaceGB)
				assert.Equal(t, 2*time.Hour, cfg.Monitor.NotifyCooldown)
				assert.Equal(t, "/tmp/homelab.prom", cfg.Monitor.MetricsFile)
				require.Len(t, cfg.NotificationChannels, 1)
				assert.Equal(t, 4, cfg.NotificationChannels[0].Config["priority"])
				assert.Equal(t, "/backups", cfg.Portainer.BackupDir)
				assert.Equal(t, 7, cfg.Portainer.RetentionDays)
				assert.Equal(t, 3, cfg.Portainer.MaxBackups)
				assert.Equal(t, DefaultGDriveFolder, cfg.Portainer.Remote.Folder)
				assert.Equal(t, DefaultGDriveToken, cfg.Portainer.Remote.TokenFile)
				assert.Equal(t, 2, cfg.Plex.LibrarySection)
				assert.Equal(t, 5, cfg.Plex.Count)
				assert.Equal(t, "{{ len .Issues }} issues", cfg.Templates.DailySummary)
			},
		},
		{
			name: "minimal_config_with_defaults",
			yaml: `notification_channels: []`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
				assert.True(t, cfg.Insecure)
				assert.Equal(t, DefaultEnvFiles, cfg.EnvFiles)
				assert.Equal(t, DefaultStateFile, cfg.Monitor.StateFile)
				assert.Equal(t, float64(DefaultMinDiskSpaceGB), cfg.Monitor.MinDiskSpaceGB)
				assert.Equal(t, time.Hour, cfg.Monitor.NotifyCooldown)
				assert.Equal(t, DefaultBackupDir, cfg.Portainer.BackupDir)
				assert.Equal(t, DefaultRetentionDays, cfg.Portainer.RetentionDays)
				assert.Equal(t, DefaultMaxBackups, cfg.Portainer.MaxBackups)
				assert.Equal(t, DefaultOAuthPort, cfg.GDrive.Port)
				assert.NotEmpty(t, cfg.GDrive.CredentialsPaths)
				assert.Equal(t, DefaultPlexCount, cfg.Plex.Count)
				assert.Equal(t, DefaultDailySummaryTemplate, cfg.Templates.DailySummary)
			},
		},
		{
			name: "invalid_yaml",
			yaml: `
monitor:
  state_file: [
`,
			wantErr: true,
		},
		{
			name: "invalid_cooldown",
			yaml: `
monitor:
  notify_cooldown: "soon"
`,
			wantErr: true,
		},
		{
			name: "unknown_channel_type",
			yaml: `
notification_channels:
  - name: "pager"
    type: "pagerduty"
`,
			wantErr: true,
		},
		{
			name: "missing_channel_name",
			yaml: `
notification_channels:
  - type: "stdout"
`,
			wantErr: true,
		},
		{
			name: "duplicate_channel_name",
			yaml: `
notification_channels:
  - name: "out"
    type: "stdout"
  - name: "out"
    type: "stdout"
`,
			wantErr: true,
		},
		{
			name: "unknown_remote_type",
			yaml: `
portainer:
  remote:
    type: "ftp"
`,
			wantErr: true,
		},
		{
			name: "s3_remote_without_bucket",
			yaml: `
portainer:
  remote:
    type: "s3"
`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tc.yaml), true)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := LoadConfig(missing, true)
	assert.Error(t, err)

	cfg, err := LoadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultStateFile, cfg.Monitor.StateFile)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "missing.env")
	second := filepath.Join(dir, "second.env")
	third := filepath.Join(dir, "third.env")
	require.NoError(t, os.WriteFile(second, []byte("# comment\nHOMELAB_TEST_VALUE=\"from-second\"\n"), 0600))
	require.NoError(t, os.WriteFile(third, []byte("HOMELAB_TEST_VALUE=from-third\n"), 0600))

	t.Setenv("HOMELAB_TEST_VALUE", "from-process")

	used, err := LoadEnvFile([]string{first, second, third})
	require.NoError(t, err)
	assert.Equal(t, second, used)
	assert.Equal(t, "from-second", os.Getenv("HOMELAB_TEST_VALUE"))

	used, err = LoadEnvFile([]string{first})
	require.NoError(t, err)
	assert.Empty(t, used)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SABNZBD_URL", "http://sab:8080/")
	t.Setenv("SABNZBD_API_KEY", "sabkey")
	t.Setenv("PROWLARR_URL", "http://prowlarr:9696")
	t.Setenv("PROWLARR_API_KEY", "")
	t.Setenv("AGREGARR_URL", "http://agregarr:7171")
	t.Setenv("PLEX_URL", "http://plex:32400")
	t.Setenv("PLEX_TOKEN", "plextoken")
	t.Setenv("GOTIFY_URL", "https://gotify.local/")
	t.Setenv("GOTIFY_TOKEN", "gotifytoken")

	t.Run("implicit_gotify_channel", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"), false)
		require.NoError(t, err)
		cfg.ApplyEnv()

		assert.Equal(t, Endpoint{URL: "http://sab:8080", APIKey: "sabkey"}, cfg.Services.SABnzbd)
		assert.True(t, cfg.Services.SABnzbd.Configured(true))
		assert.False(t, cfg.Services.Prowlarr.Configured(true))
		assert.True(t, cfg.Services.Agregarr.Configured(false))
		assert.Equal(t, "plextoken", cfg.Services.Plex.APIKey)

		require.Len(t, cfg.NotificationChannels, 1)
		gc, err := GetGotifyChannelConfig(cfg.NotificationChannels[0])
		require.NoError(t, err)
		assert.Equal(t, "https://gotify.local", gc.URL)
		assert.Equal(t, "gotifytoken", gc.Token)
	})

	t.Run("named_channel_secrets", func(t *testing.T) {
		t.Setenv("HOMELAB_TELEGRAM_TOKEN_OPS_CHAT", "tg-token")
		t.Setenv("HOMELAB_GOTIFY_TOKEN_PHONE", "phone-token")

		cfg, err := LoadConfig(writeConfig(t, `
notification_channels:
  - name: "ops-chat"
    type: "telegram"
    config:
      chat_id: "42"
  - name: "phone"
    type: "gotify"
`), true)
		require.NoError(t, err)
		cfg.ApplyEnv()

		require.Len(t, cfg.NotificationChannels, 2)
		tg, err := GetTelegramChannelConfig(cfg.NotificationChannels[0])
		require.NoError(t, err)
		assert.Equal(t, "tg-token", tg.BotToken)
		assert.Equal(t, "https://api.telegram.org", tg.APIURL)

		gc, err := GetGotifyChannelConfig(cfg.NotificationChannels[1])
		require.NoError(t, err)
		assert.Equal(t, "phone-token", gc.Token)
		assert.Equal(t, "https://gotify.local", gc.URL)
	})
}

func TestGetEmailChannelConfig(t *testing.T) {
	valid := NotificationChannelConfig{
		Name: "mail",
		Type: "email",
		Config: map[string]interface{}{
			"smtp_host":    "smtp.example.com",
			"smtp_port":    587,
			"smtp_from":    "homelab@example.com",
			"smtp_to":      []interface{}{"admin@example.com"},
			"smtp_use_tls": true,
		},
	}
	ec, err := GetEmailChannelConfig(valid)
	require.NoError(t, err)
	assert.Equal(t, 587, ec.SMTPPort)
	assert.True(t, ec.SMTPUseTLS)
	assert.Equal(t, []string{"admin@example.com"}, ec.SMTPTo)

	missingTo := NotificationChannelConfig{Name: "mail", Type: "email", Config: map[string]interface{}{
		"smtp_host": "smtp.example.com",
		"smtp_port": 25,
		"smtp_from": "homelab@example.com",
	}}
	_, err = GetEmailChannelConfig(missingTo)
	assert.Error(t, err)

	_, err = GetEmailChannelConfig(NotificationChannelConfig{Type: "stdout"})
	assert.Error(t, err)
}

func TestGetGotifyChannelConfigMissingToken(t *testing.T) {
	_, err := GetGotifyChannelConfig(NotificationChannelConfig{
		Name:   "gotify",
		Type:   "gotify",
		Config: map[string]interface{}{"url": "https://gotify.local"},
	})
	assert.Error(t, err)
}
