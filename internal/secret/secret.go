// Package secret resolves passwords from the environment or the OS keyring.
package secret

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// EnvPassword takes precedence over the keyring when set.
const EnvPassword = "TIMESHEET_PASSWORD"

// ErrNotFound means neither the environment nor the keyring had a value.
var ErrNotFound = errors.New("secret not found")

// Lookup returns the password for user stored under service.
func Lookup(service, user string) (string, error) {
	if v := os.Getenv(EnvPassword); v != "" {
		return v, nil
	}
	pw, err := keyring.Get(service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: no keyring entry for %s in %q; set %s or store it with `timesheet auth exchange`",
				ErrNotFound, user, service, EnvPassword)
		}
		return "", fmt.Errorf("keyring lookup: %w", err)
	}
	return pw, nil
}

// Store saves a password for user under service in the OS keyring.
func Store(service, user, password string) error {
	if err := keyring.Set(service, user, password); err != nil {
		return fmt.Errorf("keyring store: %w", err)
	}
	return nil
}
