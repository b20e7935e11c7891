package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/snadboy/homelab-scripts/internal/util"
)

const (
	DefaultStateFile      = "/app/scripts/.arr_monitor_state.json"
	DefaultBackupDir      = "/mnt/shareables/backups/portainer"
	DefaultGDriveToken    = "gdrive_token.json"
	DefaultRequestTimeout = 10 * time.Second
	DefaultNotifyCooldown = time.Hour
	DefaultMinDiskSpaceGB = 10
	DefaultRetentionDays  = 30
	DefaultMaxBackups     = 10
	DefaultGDriveFolder   = "portainer-backups"
	DefaultOAuthPort      = 8080
	DefaultPlexSection    = 1
	DefaultPlexCount      = 3

	envSecretPrefix = "HOMELAB_"
)

// DefaultEnvFiles are tried in order; the first one that exists wins.
var DefaultEnvFiles = []string{
	"/app/scripts/.claude/.env",
	"/mnt/shareables/.claude/.env",
}

// ErrNotConfigured is returned when an operation is missing its URL or API key.
var ErrNotConfigured = errors.New("not configured")

type Config struct {
	EnvFiles             []string                    `yaml:"env_files"`
	RequestTimeoutStr    string                      `yaml:"request_timeout"`
	InsecureSkipVerify   *bool                       `yaml:"insecure_skip_verify"`
	Monitor              MonitorConfig               `yaml:"monitor"`
	NotificationChannels []NotificationChannelConfig `yaml:"notification_channels"`
	Templates            TemplateConfig              `yaml:"templates"`
	Portainer            PortainerConfig             `yaml:"portainer"`
	GDrive               GDriveConfig                `yaml:"gdrive"`
	Plex                 PlexConfig                  `yaml:"plex"`
	RequestTimeout       time.Duration               `yaml:"-"` // Derived
	Insecure             bool                        `yaml:"-"` // Derived
	Services             ServiceEndpoints            `yaml:"-"` // From env
}

type MonitorConfig struct {
	StateFile         string        `yaml:"state_file"`
	MinDiskSpaceGB    float64       `yaml:"min_disk_space_gb"`
	NotifyCooldownStr string        `yaml:"notify_cooldown"` // e.g. "1h"
	MetricsFile       string        `yaml:"metrics_file"`
	NotifyCooldown    time.Duration `yaml:"-"` // Parsed
}

type NotificationChannelConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"` // "gotify", "email", "telegram", "stdout"
	Config map[string]interface{} `yaml:"config"`
}

type GotifyChannelConfig struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token"` // Will be populated from ENV
	Priority int    `yaml:"priority"`
}

type EmailChannelConfig struct {
	SMTPHost     string   `yaml:"smtp_host"`
	SMTPPort     int      `yaml:"smtp_port"`
	SMTPUsername string   `yaml:"smtp_username"`
	SMTPPassword string   `yaml:"smtp_password"` // Will be populated from ENV
	SMTPFrom     string   `yaml:"smtp_from"`
	SMTPTo       []string `yaml:"smtp_to"`
	SMTPUseTLS   bool     `yaml:"smtp_use_tls"`
}

type TelegramChannelConfig struct {
	BotToken string `yaml:"bot_token"` // Will be populated from ENV
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url"`
}

type TemplateConfig struct {
	DailySummary string `yaml:"daily_summary"`
}

type PortainerConfig struct {
	BackupDir     string       `yaml:"backup_dir"`
	RetentionDays int          `yaml:"retention_days"`
	MaxBackups    int          `yaml:"max_backups"`
	MetricsFile   string       `yaml:"metrics_file"`
	Remote        RemoteConfig `yaml:"remote"`
}

// RemoteConfig selects where archived backups are copied after the local run.
type RemoteConfig struct {
	Type            string `yaml:"type"` // "", "gdrive", "s3"
	Folder          string `yaml:"folder"`
	TokenFile       string `yaml:"token_file"`
	CredentialsFile string `yaml:"credentials_file"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
}

type GDriveConfig struct {
	CredentialsPaths []string `yaml:"credentials_paths"`
	TokenFile        string   `yaml:"token_file"`
	Port             int      `yaml:"port"`
}

type PlexConfig struct {
	LibrarySection int `yaml:"library_section"`
	Count          int `yaml:"count"`
}

// Endpoint is a service base URL plus its API key, both read from the environment.
type Endpoint struct {
	URL    string
	APIKey string
}

func (e Endpoint) Configured(needKey bool) bool {
	if e.URL == "" {
		return false
	}
	return !needKey || e.APIKey != ""
}

type ServiceEndpoints struct {
	SABnzbd   Endpoint
	Sonarr    Endpoint
	Radarr    Endpoint
	Prowlarr  Endpoint
	Overseerr Endpoint
	Agregarr  Endpoint
	Portainer Endpoint
	Plex      Endpoint
	Gotify    Endpoint
}

// LoadConfig reads the YAML file at filePath. A missing file is only an error when required is set;
// otherwise defaults are used.
func LoadConfig(filePath string, required bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML from %s: %w", filePath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validateChannels(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	var err error

	if len(cfg.EnvFiles) == 0 {
		cfg.EnvFiles = append([]string(nil), DefaultEnvFiles...)
	}

	cfg.RequestTimeout, err = util.ParseDurationString(cfg.RequestTimeoutStr)
	if err != nil {
		return fmt.Errorf("request_timeout: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	cfg.Insecure = true
	if cfg.InsecureSkipVerify != nil {
		cfg.Insecure = *cfg.InsecureSkipVerify
	}

	m := &cfg.Monitor
	if m.StateFile == "" {
		m.StateFile = DefaultStateFile
	}
	if m.MinDiskSpaceGB <= 0 {
		m.MinDiskSpaceGB = DefaultMinDiskSpaceGB
	}
	m.NotifyCooldown, err = util.ParseDurationString(m.NotifyCooldownStr)
	if err != nil {
		return fmt.Errorf("monitor.notify_cooldown: %w", err)
	}
	if m.NotifyCooldown <= 0 {
		m.NotifyCooldown = DefaultNotifyCooldown
	}

	p := &cfg.Portainer
	if p.BackupDir == "" {
		p.BackupDir = DefaultBackupDir
	}
	if p.RetentionDays <= 0 {
		p.RetentionDays = DefaultRetentionDays
	}
	if p.MaxBackups <= 0 {
		p.MaxBackups = DefaultMaxBackups
	}
	switch p.Remote.Type {
	case "", "gdrive", "s3":
	default:
		return fmt.Errorf("portainer.remote has unknown type '%s'", p.Remote.Type)
	}
	if p.Remote.Type == "gdrive" {
		if p.Remote.Folder == "" {
			p.Remote.Folder = DefaultGDriveFolder
		}
		if p.Remote.TokenFile == "" {
			p.Remote.TokenFile = DefaultGDriveToken
		}
	}
	if p.Remote.Type == "s3" && p.Remote.Bucket == "" {
		return fmt.Errorf("portainer.remote of type s3 needs a bucket")
	}

	g := &cfg.GDrive
	if len(g.CredentialsPaths) == 0 {
		g.CredentialsPaths = DefaultCredentialsPaths()
	}
	if g.TokenFile == "" {
		g.TokenFile = DefaultGDriveToken
	}
	if g.Port <= 0 {
		g.Port = DefaultOAuthPort
	}

	if cfg.Plex.LibrarySection <= 0 {
		cfg.Plex.LibrarySection = DefaultPlexSection
	}
	if cfg.Plex.Count <= 0 {
		cfg.Plex.Count = DefaultPlexCount
	}

	if cfg.Templates.DailySummary == "" {
		cfg.Templates.DailySummary = DefaultDailySummaryTemplate
	}
	return nil
}

func (cfg *Config) validateChannels() error {
	seen := make(map[string]bool)
	for i := range cfg.NotificationChannels {
		nc := &cfg.NotificationChannels[i]
		if nc.Name == "" {
			return fmt.Errorf("notification channel at index %d missing name", i)
		}
		if seen[nc.Name] {
			return fmt.Errorf("duplicate notification channel name defined: %s", nc.Name)
		}
		seen[nc.Name] = true
		switch nc.Type {
		case "gotify", "email", "telegram", "stdout":
		default:
			return fmt.Errorf("notification channel '%s' has unknown type '%s'", nc.Name, nc.Type)
		}
	}
	return nil
}

// DefaultCredentialsPaths lists where the Google OAuth client secret is looked for.
func DefaultCredentialsPaths() []string {
	paths := []string{"gdrive_credentials.json", "client_secret_gdrive.json"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home+"/.claude/client_secret_gdrive.json")
	}
	return append(paths, "/app/scripts/gdrive_credentials.json")
}

// LoadEnvFile loads the first existing file of files into the process environment, overriding
// values already set. It returns the path used, or "" when none exists.
func LoadEnvFile(files []string) (string, error) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Overload(f); err != nil {
			return "", fmt.Errorf("failed to load env file %s: %w", f, err)
		}
		slog.Info("loaded config", "file", f)
		return f, nil
	}
	slog.Warn("no config file found", "searched", strings.Join(files, ", "))
	return "", nil
}

// ApplyEnv fills service endpoints and channel secrets from the environment.
// Naming convention for channel secrets: HOMELAB_<FIELD>_<CHANNEL_NAME_UPPERCASE>,
// e.g. HOMELAB_GOTIFY_TOKEN_OPS or HOMELAB_SMTP_PASSWORD_CRITICAL_EMAIL.
func (cfg *Config) ApplyEnv() {
	endpoint := func(prefix string) Endpoint {
		return Endpoint{
			URL:    util.TrimBaseURL(os.Getenv(prefix + "_URL")),
			APIKey: os.Getenv(prefix + "_API_KEY"),
		}
	}
	cfg.Services = ServiceEndpoints{
		SABnzbd:   endpoint("SABNZBD"),
		Sonarr:    endpoint("SONARR"),
		Radarr:    endpoint("RADARR"),
		Prowlarr:  endpoint("PROWLARR"),
		Overseerr: endpoint("OVERSEERR"),
		Agregarr:  endpoint("AGREGARR"),
		Portainer: endpoint("PORTAINER"),
		Plex:      Endpoint{URL: util.TrimBaseURL(os.Getenv("PLEX_URL")), APIKey: os.Getenv("PLEX_TOKEN")},
		Gotify:    Endpoint{URL: util.TrimBaseURL(os.Getenv("GOTIFY_URL")), APIKey: os.Getenv("GOTIFY_TOKEN")},
	}

	for i := range cfg.NotificationChannels {
		nc := &cfg.NotificationChannels[i]
		if nc.Config == nil {
			nc.Config = make(map[string]interface{})
		}
		channelNameUpper := strings.ToUpper(strings.ReplaceAll(nc.Name, "-", "_"))

		var key, field string
		switch nc.Type {
		case "gotify":
			key, field = "GOTIFY_TOKEN", "token"
			if s, _ := nc.Config["url"].(string); s == "" {
				nc.Config["url"] = cfg.Services.Gotify.URL
			}
		case "email":
			key, field = "SMTP_PASSWORD", "smtp_password"
		case "telegram":
			key, field = "TELEGRAM_TOKEN", "bot_token"
		default:
			continue
		}

		envKey := envSecretPrefix + key + "_" + channelNameUpper
		if v := os.Getenv(envKey); v != "" {
			nc.Config[field] = v
			continue
		}
		if s, _ := nc.Config[field].(string); s != "" {
			slog.Warn("secret found in config file, it should be set via env", "channel", nc.Name, "env", envKey)
		} else if nc.Type == "gotify" {
			nc.Config[field] = cfg.Services.Gotify.APIKey
		}
	}

	// Without explicit channels, GOTIFY_URL/GOTIFY_TOKEN define the implicit one.
	if len(cfg.NotificationChannels) == 0 && cfg.Services.Gotify.URL != "" {
		cfg.NotificationChannels = append(cfg.NotificationChannels, NotificationChannelConfig{
			Name: "gotify",
			Type: "gotify",
			Config: map[string]interface{}{
				"url":   cfg.Services.Gotify.URL,
				"token": cfg.Services.Gotify.APIKey,
			},
		})
	}
}

// GetGotifyChannelConfig returns the typed gotify settings of a channel.
func GetGotifyChannelConfig(nc NotificationChannelConfig) (*GotifyChannelConfig, error) {
	if nc.Type != "gotify" {
		return nil, fmt.Errorf("not a gotify channel")
	}
	var gc GotifyChannelConfig
	gc.URL, _ = nc.Config["url"].(string)
	gc.Token, _ = nc.Config["token"].(string)
	if p, ok := nc.Config["priority"].(int); ok {
		gc.Priority = p
	}
	gc.URL = util.TrimBaseURL(gc.URL)
	if gc.URL == "" || gc.Token == "" {
		return nil, fmt.Errorf("channel '%s': url or token (from ENV) missing", nc.Name)
	}
	return &gc, nil
}

// GetEmailChannelConfig returns the typed SMTP settings of a channel.
func GetEmailChannelConfig(nc NotificationChannelConfig) (*EmailChannelConfig, error) {
	if nc.Type != "email" {
		return nil, fmt.Errorf("not an email channel")
	}
	var emailCfg EmailChannelConfig
	var ok bool
	if emailCfg.SMTPHost, ok = nc.Config["smtp_host"].(string); !ok {
		return nil, fmt.Errorf("channel '%s': smtp_host missing or not a string", nc.Name)
	}
	if emailCfg.SMTPPort, ok = nc.Config["smtp_port"].(int); !ok {
		return nil, fmt.Errorf("channel '%s': smtp_port missing or not an int", nc.Name)
	}
	if emailCfg.SMTPFrom, ok = nc.Config["smtp_from"].(string); !ok {
		return nil, fmt.Errorf("channel '%s': smtp_from missing or not a string", nc.Name)
	}
	emailCfg.SMTPUsername, _ = nc.Config["smtp_username"].(string)
	emailCfg.SMTPPassword, _ = nc.Config["smtp_password"].(string)
	emailCfg.SMTPUseTLS, _ = nc.Config["smtp_use_tls"].(bool)

	toVal, ok := nc.Config["smtp_to"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("channel '%s': smtp_to missing or not a list of strings", nc.Name)
	}
	for _, t := range toVal {
		if tStr, ok := t.(string); ok {
			emailCfg.SMTPTo = append(emailCfg.SMTPTo, tStr)
		}
	}

	if emailCfg.SMTPHost == "" || emailCfg.SMTPPort == 0 || emailCfg.SMTPFrom == "" || len(emailCfg.SMTPTo) == 0 {
		return nil, fmt.Errorf("channel '%s': one or more required email config fields are missing (host, port, from, to)", nc.Name)
	}
	return &emailCfg, nil
}

// GetTelegramChannelConfig returns the typed Telegram settings of a channel.
func GetTelegramChannelConfig(nc NotificationChannelConfig) (*TelegramChannelConfig, error) {
	if nc.Type != "telegram" {
		return nil, fmt.Errorf("not a telegram channel")
	}
	var telegramCfg TelegramChannelConfig
	telegramCfg.BotToken, _ = nc.Config["bot_token"].(string)
	telegramCfg.APIURL, _ = nc.Config["api_url"].(string)
	chatID, ok := nc.Config["chat_id"].(string)
	if !ok {
		return nil, fmt.Errorf("channel '%s': chat_id missing or not a string", nc.Name)
	}
	telegramCfg.ChatID = chatID

	if telegramCfg.BotToken == "" || telegramCfg.ChatID == "" {
		return nil, fmt.Errorf("channel '%s': bot_token (from ENV) or chat_id are missing", nc.Name)
	}
	if telegramCfg.APIURL == "" {
		telegramCfg.APIURL = "https://api.telegram.org"
	}
	return &telegramCfg, nil
}
