package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestResolveSecret_EnvOnly(t *testing.T) {
	t.Setenv("ASTARVIZ_TEST_SECRET", "env-value")

	value, err := ResolveSecret("ASTARVIZ_TEST_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "env-value" {
		t.Errorf("got %q, want %q", value, "env-value")
	}
}

func TestResolveSecret_FileWinsAndIsTrimmed(t *testing.T) {
	t.Setenv("ASTARVIZ_TEST_SECRET", "env-value")
	t.Setenv("ASTARVIZ_TEST_SECRET_FILE", writeSecret(t, "  file-value \n\n"))

	value, err := ResolveSecret("ASTARVIZ_TEST_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "file-value" {
		t.Errorf("got %q, want %q", value, "file-value")
	}
}

func TestResolveSecret_NeitherSet(t *testing.T) {
	t.Setenv("ASTARVIZ_TEST_SECRET", "")
	t.Setenv("ASTARVIZ_TEST_SECRET_FILE", "")

	value, err := ResolveSecret("ASTARVIZ_TEST_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "" {
		t.Errorf("got %q, want empty string", value)
	}
}

func TestResolveSecret_FileNotFound(t *testing.T) {
	t.Setenv("ASTARVIZ_TEST_SECRET_FILE", "/nonexistent/path/to/secret")

	if _, err := ResolveSecret("ASTARVIZ_TEST_SECRET"); err == nil {
		t.Error("expected error when file does not exist")
	}
}

func TestResolveCredentials(t *testing.T) {
	t.Setenv("ASTARVIZ_ADMIN_USER", "admin")
	t.Setenv("ASTARVIZ_ADMIN_PASS_FILE", writeSecret(t, "s3cret\n"))
	t.Setenv("REDIS_PASSWORD", "redis-pass")

	c, err := ResolveCredentials()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.AdminUser != "admin" || c.AdminPass != "s3cret" || c.RedisPassword != "redis-pass" {
		t.Errorf("unexpected credentials %+v", c)
	}
}

func TestResolveCredentials_BadFile(t *testing.T) {
	t.Setenv("MQTT_PASSWORD_FILE", "/nonexistent/mqtt")

	if _, err := ResolveCredentials(); err == nil {
		t.Error("expected error for unreadable secret file")
	}
}
