//go:build !darwin

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestJSONFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thoughtchain", "config.json")

	b := openJSONFileBackend(path)
	if err := b.SetString("summary.model", "gpt-4o"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := b.SetInt("server.port", 4200); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	reopened := openJSONFileBackend(path)
	if v, ok, err := reopened.GetString("summary.model"); err != nil || !ok || v != "gpt-4o" {
		t.Errorf("GetString = %q, %v, %v", v, ok, err)
	}
	if v, ok, err := reopened.GetInt("server.port"); err != nil || !ok || v != 4200 {
		t.Errorf("GetInt = %d, %v, %v", v, ok, err)
	}
	if _, ok, _ := reopened.GetString("log.level"); ok {
		t.Error("unset key reported as present")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestJSONFileBackend_HandWrittenNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"summary.temperature": 0.25, "server.port": 4100.5, "lifecycle.split_hour": "5"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	b := openJSONFileBackend(path)

	if v, _, _ := b.GetString("summary.temperature"); v != "0.25" {
		t.Errorf("temperature = %q, want 0.25", v)
	}
	if _, ok, err := b.GetInt("server.port"); !ok || err == nil {
		t.Error("expected an error for a fractional port")
	}
	if v, _, err := b.GetInt("lifecycle.split_hour"); err != nil || v != 5 {
		t.Errorf("split_hour = %d, %v", v, err)
	}
}

func TestJSONFileBackend_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	b := openJSONFileBackend(path)
	if err := b.SetString("log.level", "debug"); err != nil {
		t.Fatalf("SetString after corrupt read: %v", err)
	}
	if v, ok, _ := openJSONFileBackend(path).GetString("log.level"); !ok || v != "debug" {
		t.Errorf("log.level = %q, %v", v, ok)
	}
}

func TestFileSecretStore(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if _, err := keychainGet(secretService, apiKeyAccount); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("keychainGet on empty store = %v, want ErrSecretNotFound", err)
	}
	if err := keychainSet(secretService, apiKeyAccount, "sk-test"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	if err := keychainSet(secretService, tokenAccount, "tok"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}

	got, err := keychainReader{}.Get(secretService, apiKeyAccount)
	if err != nil || got != "sk-test" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if filepath.Base(secretsFilePath()) != "secrets.json" {
		t.Errorf("secrets path = %s", secretsFilePath())
	}
}
