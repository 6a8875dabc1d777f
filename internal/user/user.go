// Package user resolves the identity stamped on changes made from this
// machine.
package user

import (
	"os"
	"os/user"
)

// GetCurrentUsername returns the current system username.
// It tries multiple methods with fallbacks:
// 1. user.Current() - most reliable, gets username from OS
// 2. USER environment variable - fallback for restricted environments
// 3. "unknown" - final fallback to ensure a non-empty value
func GetCurrentUsername() string {
	currentUser, err := user.Current()
	if err != nil || currentUser.Username == "" {
		username := os.Getenv("USER")
		if username == "" {
			return "unknown"
		}
		return username
	}
	return currentUser.Username
}

// ActorID returns configured when set, otherwise username@hostname. Boards
// ignore events carrying their own actor id.
func ActorID(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return GetCurrentUsername()
	}
	return GetCurrentUsername() + "@" + host
}
