package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prodmax.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr != ":3000" || cfg.PomodoroMinutes != 25 || cfg.PomodoroXP != 15 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.PersistTimeout != 10*time.Second {
		t.Errorf("PersistTimeout = %v, want 10s", cfg.PersistTimeout)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
store: memory
timezone: Europe/Moscow
pomodoro_minutes: 30
max_api_timeout: 3s
log_format: json
`)
	t.Setenv("POMODORO_MINUTES", "45")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Timezone != "Europe/Moscow" {
		t.Errorf("Timezone = %q, want file value", cfg.Timezone)
	}
	if cfg.MaxAPITimeout != 3*time.Second {
		t.Errorf("MaxAPITimeout = %v, want 3s", cfg.MaxAPITimeout)
	}
	if cfg.PomodoroMinutes != 45 {
		t.Errorf("PomodoroMinutes = %d, env must win over the file", cfg.PomodoroMinutes)
	}

	cal, err := cfg.Calendar()
	if err != nil {
		t.Fatal(err)
	}
	if cal.Location().String() != "Europe/Moscow" {
		t.Errorf("calendar zone = %s", cal.Location())
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{name: "postgres without url", file: "store: postgres\ndatabase_url: \"\"\n", want: "DATABASE_URL"},
		{name: "unknown store", file: "store: mongo\n", want: "unknown store"},
		{name: "bad zone", file: "store: memory\ntimezone: Mars/Olympus\n", want: "timezone"},
		{name: "zero minutes", file: "store: memory\npomodoro_minutes: 0\n", want: "pomodoro_minutes"},
		{name: "bad level", file: "store: memory\nlog_level: loud\n", want: "log level"},
		{name: "bad format", file: "store: memory\nlog_format: xml\n", want: "log format"},
		{name: "bad yaml", file: "store: [", want: "parse config"},
		{name: "bad env", file: "store: memory\n", env: map[string]string{"POMODORO_XP": "lots"}, want: "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE", "")
			os.Unsetenv("STORE") //nolint:errcheck
			t.Setenv("DATABASE_URL", "")
			os.Unsetenv("DATABASE_URL") //nolint:errcheck
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(writeFile(t, tt.file))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestSlogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warn", "error"} {
		c := Config{LogLevel: lvl}
		if _, err := c.SlogLevel(); err != nil {
			t.Errorf("SlogLevel(%q) error: %v", lvl, err)
		}
	}
}
