//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// xdgPath resolves name under $envVar/thoughtchain, falling back to
// ~/fallback/thoughtchain when the variable is unset.
func xdgPath(envVar, fallback, name string) string {
	dir := os.Getenv(envVar)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join("thoughtchain-data", name)
		}
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, "thoughtchain", name)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "")
}

// writeJSONFile replaces path with v encoded as indented JSON. The file is
// written next to its destination and renamed so readers never see a
// partial document.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// jsonFileBackend keeps settings as a flat JSON object at
// $XDG_CONFIG_HOME/thoughtchain/config.json.
type jsonFileBackend struct {
	mu   sync.Mutex
	path string
	data map[string]any
}

func newPlatformBackend() Backend {
	return openJSONFileBackend(xdgPath("XDG_CONFIG_HOME", ".config", "config.json"))
}

func openJSONFileBackend(path string) *jsonFileBackend {
	b := &jsonFileBackend{path: path, data: make(map[string]any)}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		if err := json.Unmarshal(data, &b.data); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
			b.data = make(map[string]any)
		}
	}
	return b
}

func (b *jsonFileBackend) Location() string { return b.path }

func (b *jsonFileBackend) GetString(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch v := b.data[key].(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case float64:
		// Numbers written by hand (timeouts in seconds, temperatures)
		// reach parse as their shortest decimal form.
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}

func (b *jsonFileBackend) GetInt(key string) (int, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch v := b.data[key].(type) {
	case nil:
		return 0, false, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt || v > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, v)
		}
		return int(v), true, nil
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s: unexpected %T", key, v)
	}
}

func (b *jsonFileBackend) SetString(key, val string) error {
	return b.set(key, val)
}

func (b *jsonFileBackend) SetInt(key string, val int) error {
	return b.set(key, val)
}

func (b *jsonFileBackend) set(key string, val any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = val
	return writeJSONFile(b.path, b.data)
}
