package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"enricher/pkg/config"
)

// Service names an external API the pipeline holds a key for.
type Service string

const (
	ServiceAirtable  Service = "airtable"
	ServiceApify     Service = "apify"
	ServiceAnthropic Service = "anthropic"
)

// Services lists every service in pipeline order.
func Services() []Service {
	return []Service{ServiceAirtable, ServiceApify, ServiceAnthropic}
}

// ParseService accepts a service name case-insensitively.
func ParseService(name string) (Service, error) {
	for _, s := range Services() {
		if strings.EqualFold(name, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown service %q (want one of airtable, apify, anthropic)", name)
}

// EnvVar is the environment variable the service documents for its key.
func (s Service) EnvVar() string {
	switch s {
	case ServiceAirtable:
		return "AIRTABLE_API_KEY"
	case ServiceApify:
		return "APIFY_API_KEY"
	case ServiceAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// Credential is one stored API key.
type Credential struct {
	Service      Service   `json:"service"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is a place keys can be kept.
type CredentialStore interface {
	Store(c *Credential) error
	Retrieve(s Service) (*Credential, error)
	List() ([]*Credential, error)
	Delete(s Service) error
	Exists(s Service) bool
}

// Manager consults its stores in order: keyring, encrypted file, then
// environment.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager with the stores available on this machine.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	fs, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fs, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores.
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the key in the first store that accepts it.
func (m *Manager) Store(c *Credential) error {
	if c == nil || c.Service == "" {
		return errors.New("service is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("API key is required")
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(c)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns the key from the first store holding one.
func (m *Manager) Retrieve(s Service) (*Credential, error) {
	for _, store := range m.stores {
		if c, err := store.Retrieve(s); err == nil && c != nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, s)
}

// Exists reports whether any store holds a key for s.
func (m *Manager) Exists(s Service) bool {
	for _, store := range m.stores {
		if store.Exists(s) {
			return true
		}
	}
	return false
}

// List returns one credential per service, the newest when several stores
// hold a key.
func (m *Manager) List() ([]*Credential, error) {
	byService := make(map[Service]*Credential)
	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, c := range creds {
			if existing, ok := byService[c.Service]; !ok || c.LastModified.After(existing.LastModified) {
				byService[c.Service] = c
			}
		}
	}

	out := make([]*Credential, 0, len(byService))
	for _, c := range byService {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

// Delete removes the key from every store that can delete it.
func (m *Manager) Delete(s Service) error {
	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(s); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	switch {
	case deleted:
		return nil
	case lastErr != nil:
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	default:
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, s)
	}
}

// ApplyTo fills the keys cfg is missing and reports which services got one.
// Keys already set by file, environment or flag win.
func (m *Manager) ApplyTo(cfg *config.Config) []Service {
	targets := map[Service]*string{
		ServiceAirtable:  &cfg.Airtable.APIKey,
		ServiceApify:     &cfg.Apify.Token,
		ServiceAnthropic: &cfg.Completion.APIKey,
	}

	var applied []Service
	for _, s := range Services() {
		dst := targets[s]
		if *dst != "" {
			continue
		}
		if c, err := m.Retrieve(s); err == nil {
			*dst = c.APIKey
			applied = append(applied, s)
		}
	}
	return applied
}

func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "enricher")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "enricher")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "enricher")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "enricher")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Sanitize returns a copy with the key masked.
func Sanitize(c *Credential) *Credential {
	if c == nil {
		return nil
	}
	return &Credential{
		Service:      c.Service,
		APIKey:       MaskKey(c.APIKey),
		LastModified: c.LastModified,
	}
}

// MaskKey keeps the first and last four characters of a key.
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
