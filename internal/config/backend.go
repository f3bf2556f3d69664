package config

import "errors"

// ErrSecretNotFound is returned by the secret store when no entry exists for
// a service/account pair.
var ErrSecretNotFound = errors.New("secret not found")

// Backend persists non-secret settings between runs. Values are stored by
// dotted key ("summary.model").
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	// Location describes where settings live, for display.
	Location() string
}

// Location describes where the platform backend keeps settings.
func Location() string {
	return newPlatformBackend().Location()
}
