// Package config stores account credentials in the OS keychain, with an
// encrypted-file fallback for headless machines and env-var overrides for CI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/99designs/keyring"
)

const (
	serviceName       = "branch-cli"
	accountKey        = "default"
	defaultProfile    = "default"
	profilePrefix     = "profile:"
	profileIndexKey   = "profiles_index"
	currentProfileKey = "current_profile"

	envKeyringBackend  = "BRANCH_KEYRING_BACKEND"
	envKeyringPassword = "BRANCH_KEYRING_PASSWORD"
	envCredentialsDir  = "BRANCH_CREDENTIALS_DIR"

	keyringBackendAuto   = "auto"
	keyringBackendFile   = "file"
	keyringBackendSystem = "system"
)

// Account holds the connection details for one Branch server.
type Account struct {
	BaseURL  string `json:"base_url"`
	APIToken string `json:"api_token"`
	AgentID  int    `json:"agent_id"`
}

// ErrNotConfigured is returned when no credentials can be found.
var ErrNotConfigured = errors.New("branch not configured - run 'branch auth login' first")

// Seams for tests: keyring opener, config dir lookup, TTY detection.
var (
	openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
		return keyring.Open(cfg)
	}
	userConfigDir = os.UserConfigDir
	stdinHasTTY   = func() bool {
		info, err := os.Stdin.Stat()
		if err != nil {
			return false
		}
		return (info.Mode() & os.ModeCharDevice) != 0
	}
)

// SetOpenKeyring swaps the keyring opener, returning a restore func.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

func openRing() (keyring.Keyring, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return ring, nil
}

func keyringConfig() keyring.Config {
	cfg := keyring.Config{ServiceName: serviceName}

	backend := keyringBackendMode()
	if backend == keyringBackendSystem {
		return cfg
	}

	// File backend details are set even in auto mode so keyring.Open can
	// fall through to encrypted file storage when native backends are missing.
	cfg.FileDir = keyringFileDir()
	cfg.FilePasswordFunc = keyringFilePassword

	if shouldForceFileBackend(runtime.GOOS, backend, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	return cfg
}

func keyringBackendMode() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envKeyringBackend))) {
	case keyringBackendFile:
		return keyringBackendFile
	case keyringBackendSystem, "os", "native":
		return keyringBackendSystem
	}
	return keyringBackendAuto
}

// shouldForceFileBackend restricts the keyring to encrypted file storage.
// Linux without a session bus has no usable secret service, so auto mode
// forces the file backend there.
func shouldForceFileBackend(goos, backend, dbusAddr string) bool {
	if backend == keyringBackendFile {
		return true
	}
	return backend == keyringBackendAuto && goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

func keyringFileDir() string {
	candidates := []func() string{
		func() string { return strings.TrimSpace(os.Getenv(envCredentialsDir)) },
		func() string {
			dir, err := userConfigDir()
			if err != nil || strings.TrimSpace(dir) == "" {
				return ""
			}
			return filepath.Join(dir, serviceName)
		},
		func() string {
			home, err := os.UserHomeDir()
			if err != nil || strings.TrimSpace(home) == "" {
				return ""
			}
			return filepath.Join(home, ".config", serviceName)
		},
	}
	for _, candidate := range candidates {
		if base := candidate(); base != "" {
			return filepath.Join(base, "keyring")
		}
	}
	return filepath.Join(os.TempDir(), serviceName, "keyring")
}

func keyringFilePassword(prompt string) (string, error) {
	if password, ok := os.LookupEnv(envKeyringPassword); ok && strings.TrimSpace(password) != "" {
		return password, nil
	}
	if !stdinHasTTY() {
		return "", fmt.Errorf("set %s when using file keyring in non-interactive environments", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

// profileKey maps a profile name to its keyring key. The default profile
// uses the legacy bare key so pre-profile credentials keep working.
func profileKey(name string) string {
	if name == "" || name == defaultProfile {
		return accountKey
	}
	return profilePrefix + name
}

func loadProfileIndex(ring keyring.Keyring) ([]string, error) {
	item, err := ring.Get(profileIndexKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile index: %w", err)
	}
	var profiles []string
	if err := json.Unmarshal(item.Data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile index: %w", err)
	}
	return profiles, nil
}

func saveProfileIndex(ring keyring.Keyring, profiles []string) error {
	data, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal profile index: %w", err)
	}
	return ring.Set(keyring.Item{Key: profileIndexKey, Data: data})
}

// normalizeProfiles trims, drops empties, and dedupes preserving order.
func normalizeProfiles(profiles []string) []string {
	seen := make(map[string]struct{}, len(profiles))
	var out []string
	for _, p := range profiles {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// SaveAccount stores credentials under the default profile.
func SaveAccount(account Account) error {
	return SaveProfile(defaultProfile, account)
}

// LoadAccount resolves credentials. Environment variables win over the
// keychain; BRANCH_BASE_URL, BRANCH_API_TOKEN, and BRANCH_AGENT_ID must be
// set together. BRANCH_PROFILE selects a keychain profile by name.
func LoadAccount() (Account, error) {
	if account, ok, err := accountFromEnv(); ok || err != nil {
		return account, err
	}

	profile := strings.TrimSpace(os.Getenv("BRANCH_PROFILE"))
	if profile == "" {
		var err error
		if profile, err = CurrentProfile(); err != nil {
			return Account{}, err
		}
	}
	return LoadProfile(profile)
}

func accountFromEnv() (Account, bool, error) {
	baseURL := strings.TrimSpace(os.Getenv("BRANCH_BASE_URL"))
	if baseURL == "" {
		return Account{}, false, nil
	}
	token := strings.TrimSpace(os.Getenv("BRANCH_API_TOKEN"))
	agentIDStr := strings.TrimSpace(os.Getenv("BRANCH_AGENT_ID"))
	if token == "" || agentIDStr == "" {
		return Account{}, true, fmt.Errorf("environment variables BRANCH_BASE_URL, BRANCH_API_TOKEN, and BRANCH_AGENT_ID must all be set")
	}
	agentID, err := strconv.Atoi(agentIDStr)
	if err != nil || agentID <= 0 {
		return Account{}, true, fmt.Errorf("BRANCH_AGENT_ID must be a positive integer")
	}
	return Account{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		APIToken: token,
		AgentID:  agentID,
	}, true, nil
}

// SaveProfile stores credentials under a named profile, records the profile
// in the index, and makes it current.
func SaveProfile(profile string, account Account) error {
	if profile == "" {
		profile = defaultProfile
	}

	ring, err := openRing()
	if err != nil {
		return err
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := ring.Set(keyring.Item{Key: profileKey(profile), Data: data}); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	profiles, err := loadProfileIndex(ring)
	if err != nil {
		return err
	}
	if err := saveProfileIndex(ring, normalizeProfiles(append(profiles, profile))); err != nil {
		return err
	}
	return SetCurrentProfile(profile)
}

// LoadProfile retrieves credentials for a named profile.
func LoadProfile(profile string) (Account, error) {
	if profile == "" {
		profile = defaultProfile
	}

	ring, err := openRing()
	if err != nil {
		return Account{}, err
	}

	item, err := ring.Get(profileKey(profile))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Account{}, ErrNotConfigured
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to get profile: %w", err)
	}

	var account Account
	if err := json.Unmarshal(item.Data, &account); err != nil {
		return Account{}, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return account, nil
}

// DeleteAccount removes the default profile's credentials.
func DeleteAccount() error {
	return DeleteProfile(defaultProfile)
}

// DeleteProfile removes a stored profile. If it was current, the first
// remaining profile (or the default) becomes current.
func DeleteProfile(profile string) error {
	if profile == "" {
		profile = defaultProfile
	}

	ring, err := openRing()
	if err != nil {
		return err
	}

	if err := ring.Remove(profileKey(profile)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove profile: %w", err)
	}

	profiles, err := loadProfileIndex(ring)
	if err != nil {
		return err
	}
	remaining := profiles[:0:0]
	for _, p := range profiles {
		if p != profile {
			remaining = append(remaining, p)
		}
	}
	if err := saveProfileIndex(ring, remaining); err != nil {
		return err
	}

	if current, err := CurrentProfile(); err == nil && current == profile {
		next := defaultProfile
		if len(remaining) > 0 {
			next = remaining[0]
		}
		_ = SetCurrentProfile(next)
	}
	return nil
}

// HasAccount reports whether any credentials resolve.
func HasAccount() bool {
	_, err := LoadAccount()
	return err == nil
}

// ListProfiles returns the known profile names. A bare pre-profile account
// shows up as the default profile.
func ListProfiles() ([]string, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}

	profiles, err := loadProfileIndex(ring)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		if _, err := ring.Get(accountKey); err == nil {
			return []string{defaultProfile}, nil
		}
	}
	return profiles, nil
}

// CurrentProfile returns the active profile name.
func CurrentProfile() (string, error) {
	ring, err := openRing()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(currentProfileKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return defaultProfile, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get current profile: %w", err)
	}
	return string(item.Data), nil
}

// SetCurrentProfile records the active profile name.
func SetCurrentProfile(profile string) error {
	if profile == "" {
		profile = defaultProfile
	}

	ring, err := openRing()
	if err != nil {
		return err
	}
	return ring.Set(keyring.Item{Key: currentProfileKey, Data: []byte(profile)})
}
