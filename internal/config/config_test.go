package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "GO_ENV", "LOG_LEVEL", "MAX_UPLOAD_MB", "RULES_FILE", "SQLITE_PATH"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.MaxUploadMB != 10 || cfg.MaxUploadBytes() != 10<<20 {
		t.Errorf("MaxUploadMB = %d, MaxUploadBytes = %d", cfg.MaxUploadMB, cfg.MaxUploadBytes())
	}
	if cfg.UsesSQLite() {
		t.Error("UsesSQLite() = true without SQLITE_PATH")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FIREBASE_PROJECT_ID", "cards-dev")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MAX_UPLOAD_MB", "25")
	t.Setenv("SQLITE_PATH", "/tmp/cards.db")

	cfg := Load()

	if cfg.Port != "9090" || cfg.FirebaseProjectID != "cards-dev" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.MaxUploadMB != 25 {
		t.Errorf("MaxUploadMB = %d, want 25", cfg.MaxUploadMB)
	}
	if !cfg.UsesSQLite() {
		t.Error("UsesSQLite() = false with SQLITE_PATH set")
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"unset", "", 7},
		{"valid", "3", 3},
		{"not a number", "ten", 7},
		{"negative", "-1", 7},
		{"zero", "0", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.value)
			if got := getEnvInt("TEST_INT", 7); got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}
