package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snadboy/homelab-scripts/internal/config"
	"github.com/snadboy/homelab-scripts/internal/gdrive"
	"github.com/snadboy/homelab-scripts/internal/monitor"
	"github.com/snadboy/homelab-scripts/internal/portainer"
)

var serviceEnv = []string{
	"SABNZBD_URL", "SABNZBD_API_KEY",
	"SONARR_URL", "SONARR_API_KEY",
	"RADARR_URL", "RADARR_API_KEY",
	"PROWLARR_URL", "PROWLARR_API_KEY",
	"OVERSEERR_URL", "OVERSEERR_API_KEY",
	"AGREGARR_URL", "AGREGARR_API_KEY",
	"PORTAINER_URL", "PORTAINER_API_KEY",
	"PLEX_URL", "PLEX_TOKEN",
	"GOTIFY_URL", "GOTIFY_TOKEN",
}

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// isolateEnv clears every service variable for the test and sets the given ones.
func isolateEnv(t *testing.T, values map[string]string) {
	t.Helper()
	for _, key := range serviceEnv {
		t.Setenv(key, values[key])
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.env")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"arr-health", "portainer-backup", "gdrive-auth", "plex-last-played", "test-notification",
		"joke", "sysinfo", "metrics-demo", "selftest",
	} {
		assert.Contains(t, names, want)
	}
}

func TestExplicitConfigMustExist(t *testing.T) {
	isolateEnv(t, nil)
	_, err := execute(t, "test-notification", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func mediaStack(t *testing.T, paused bool, diskGB string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api":
			switch r.URL.Query().Get("mode") {
			case "queue":
				pausedJSON := "false"
				if paused {
					pausedJSON = "true"
				}
				io.WriteString(w, `{"queue":{"paused":`+pausedJSON+`,"status":"Idle","noofslots":"0","diskspace1":"`+diskGB+`"}}`)
			default:
				assert.Fail(t, "unexpected SABnzbd mode", r.URL.Query().Get("mode"))
				io.WriteString(w, `{"status":true}`)
			}
		case "/api/v3/system/status", "/api/v1/system/status", "/api/v1/status":
			io.WriteString(w, `{"version":"4.0.0"}`)
		case "/api/v3/health", "/api/v1/health":
			io.WriteString(w, `[]`)
		case "/agregarr":
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, "<html></html>")
		default:
			http.NotFound(w, r)
		}
	}))
}

func stackEnv(url string) map[string]string {
	return map[string]string{
		"SABNZBD_URL": url, "SABNZBD_API_KEY": "sab",
		"SONARR_URL": url, "SONARR_API_KEY": "sonarr",
		"RADARR_URL": url, "RADARR_API_KEY": "radarr",
		"PROWLARR_URL": url, "PROWLARR_API_KEY": "prowlarr",
		"OVERSEERR_URL": url, "OVERSEERR_API_KEY": "overseerr",
		"AGREGARR_URL": url + "/agregarr",
	}
}

func TestArrHealthCommandHealthy(t *testing.T) {
	server := mediaStack(t, false, "120.5")
	defer server.Close()
	isolateEnv(t, nil)

	var envContent bytes.Buffer
	for k, v := range stackEnv(server.URL) {
		envContent.WriteString(k + "=" + v + "\n")
	}
	envFile := writeFile(t, ".env", envContent.String())

	dir := t.TempDir()
	stateFile := filepath.Join(dir, "state.json")
	metricsFile := filepath.Join(dir, "homelab.prom")
	configFile := writeFile(t, "config.yaml", `
monitor:
  state_file: "`+stateFile+`"
  metrics_file: "`+metricsFile+`"
notification_channels: []
`)

	out, err := execute(t, "arr-health", "--config", configFile, "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "SABnzbd")
	assert.Contains(t, out, "Agregarr")
	assert.FileExists(t, stateFile)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "homelab_monitor_healthy 1")
	assert.Contains(t, string(prom), `homelab_service_up{service="sonarr"} 1`)
}

func TestArrHealthCommandDryRunUnhealthy(t *testing.T) {
	server := mediaStack(t, true, "2.0")
	defer server.Close()
	isolateEnv(t, map[string]string{"SABNZBD_URL": server.URL, "SABNZBD_API_KEY": "sab"})

	stateFile := filepath.Join(t.TempDir(), "state.json")
	configFile := writeFile(t, "config.yaml", `
monitor:
  state_file: "`+stateFile+`"
`)

	out, err := execute(t, "arr-health", "--dry-run", "--config", configFile, "--env-file", noEnvFile(t))
	assert.ErrorIs(t, err, monitor.ErrUnhealthy)
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "Not configured")
	assert.NoFileExists(t, stateFile)
}

func portainerServer(t *testing.T, stacks string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ptr", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/stacks":
			io.WriteString(w, stacks)
		case "/api/stacks/1/file":
			io.WriteString(w, `{"StackFileContent":"services:\n  plex:\n    image: plexinc/pms-docker\n"}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestPortainerBackupCommand(t *testing.T) {
	server := portainerServer(t, `[{"Id":1,"Name":"media","EndpointId":2,"Status":1,"Type":2}]`)
	defer server.Close()
	isolateEnv(t, map[string]string{"PORTAINER_URL": server.URL, "PORTAINER_API_KEY": "ptr"})

	backupDir := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "backup.prom")
	configFile := writeFile(t, "config.yaml", `
portainer:
  backup_dir: "`+backupDir+`"
  metrics_file: "`+metricsFile+`"
`)

	out, err := execute(t, "portainer-backup", "--config", configFile, "--env-file", noEnvFile(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 stacks, saved 1 compose files")
	assert.Contains(t, out, "No old backups to clean up")
	assert.Contains(t, out, "Backup completed successfully!")

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.FileExists(t, filepath.Join(backupDir, entries[0].Name(), "compose_files", "media.yml"))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "homelab_backup_stacks 1")
}

func TestPortainerBackupCommandFailures(t *testing.T) {
	t.Run("no_stacks", func(t *testing.T) {
		server := portainerServer(t, `[]`)
		defer server.Close()
		isolateEnv(t, map[string]string{"PORTAINER_URL": server.URL, "PORTAINER_API_KEY": "ptr"})
		configFile := writeFile(t, "config.yaml", "portainer:\n  backup_dir: \""+t.TempDir()+"\"\n")

		out, err := execute(t, "portainer-backup", "--config", configFile, "--env-file", noEnvFile(t))
		assert.ErrorIs(t, err, portainer.ErrNoStacks)
		assert.Contains(t, out, "No stacks found!")
	})

	t.Run("not_configured", func(t *testing.T) {
		isolateEnv(t, nil)
		configFile := writeFile(t, "config.yaml", "portainer:\n  backup_dir: \""+t.TempDir()+"\"\n")

		_, err := execute(t, "portainer-backup", "--config", configFile, "--env-file", noEnvFile(t))
		assert.ErrorIs(t, err, config.ErrNotConfigured)
	})
}

func TestPlexLastPlayedCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "plextoken", r.Header.Get("X-Plex-Token"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "4", r.URL.Query().Get("librarySectionID"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"MediaContainer":{"Metadata":[
			{"title":"Heat","year":1995,"viewedAt":1700000000,"User":{"title":"sam"}},
			{"title":"Alien","viewedAt":1690000000}
		]}}`)
	}))
	defer server.Close()
	isolateEnv(t, map[string]string{"PLEX_URL": server.URL, "PLEX_TOKEN": "plextoken"})

	out, err := execute(t, "plex-last-played", "--count", "2", "--section", "4", "--env-file", noEnvFile(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Plex - Last 2 Movies Played")
	assert.Contains(t, out, "1. Heat (1995)")
	assert.Contains(t, out, "   User: sam")
	assert.Contains(t, out, "2. Alien\n")
	assert.Contains(t, out, `"title": "Heat"`)
}

func TestPlexLastPlayedCommandUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()
	isolateEnv(t, map[string]string{"PLEX_URL": url, "PLEX_TOKEN": "plextoken"})

	out, err := execute(t, "plex-last-played", "--env-file", noEnvFile(t))
	assert.Error(t, err)
	assert.Contains(t, out, "ERROR: Could not connect to Plex server")
}

func TestTestNotificationCommand(t *testing.T) {
	isolateEnv(t, nil)
	configFile := writeFile(t, "config.yaml", `
notification_channels:
  - name: "console"
    type: "stdout"
`)

	testCases := []struct {
		name    string
		args    []string
		wantOut string
		wantErr string
	}{
		{
			name:    "all_channels",
			args:    []string{"test-notification"},
			wantOut: "Test completed: 1/1 channels successful",
		},
		{
			name:    "specific_valid_channel",
			args:    []string{"test-notification", "console"},
			wantOut: "Test notification sent to channel: console",
		},
		{
			name:    "nonexistent_channel",
			args:    []string{"test-notification", "nonexistent"},
			wantErr: "channel 'nonexistent' not found in configuration. Available channels: console",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := append(tc.args, "--config", configFile, "--env-file", noEnvFile(t))
			out, err := execute(t, args...)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tc.wantOut)
		})
	}
}

func TestTestNotificationWithoutChannels(t *testing.T) {
	isolateEnv(t, nil)
	_, err := execute(t, "test-notification", "--config", writeFile(t, "config.yaml", "notification_channels: []\n"), "--env-file", noEnvFile(t))
	assert.ErrorContains(t, err, "no notification channels were successfully initialized")
}

func TestGDriveAuthMissingCredentials(t *testing.T) {
	isolateEnv(t, nil)
	missing := filepath.Join(t.TempDir(), "client_secret.json")

	out, err := execute(t, "gdrive-auth", "--credentials", missing, "--env-file", noEnvFile(t))
	assert.ErrorIs(t, err, gdrive.ErrNoCredentials)
	assert.Contains(t, out, "Searched locations:")
	assert.Contains(t, out, "  - "+missing)
}

func TestJokeCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"setup":"What do you call a fake noodle?","punchline":"An impasta."}`)
	}))
	defer server.Close()

	previous := jokeURL
	jokeURL = server.URL
	t.Cleanup(func() { jokeURL = previous })

	out, err := execute(t, "joke")
	require.NoError(t, err)
	assert.Contains(t, out, "Punchline: An impasta.")
}

func TestDemoCommands(t *testing.T) {
	out, err := execute(t, "selftest")
	require.NoError(t, err)
	assert.Contains(t, out, "Sum of 1-100: 5050")

	out, err = execute(t, "metrics-demo")
	require.NoError(t, err)
	assert.Contains(t, out, "Statistics by Server:")
	assert.Contains(t, out, "Analysis complete!")

	_, err = execute(t, "selftest", "extra")
	assert.Error(t, err)
}
