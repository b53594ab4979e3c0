package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/internal/security"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured means no directory configuration has been saved yet.
var ErrNotConfigured = errors.New("directory connection is not configured")

// DirectoryConfigStore owns the single directory connection configuration. The bind secret is
// sealed at rest and never returned by Get.
type DirectoryConfigStore struct {
	db     *sql.DB
	cipher *security.SecretCipher
	mu     sync.Mutex
}

func (s *Store) DirectoryConfig(cipher *security.SecretCipher) *DirectoryConfigStore {
	return &DirectoryConfigStore{db: s.db, cipher: cipher}
}

// Get returns the configuration with the secret replaced by tools.SecretMask (or empty if unset).
func (d *DirectoryConfigStore) Get(ctx context.Context) (ldapclient.Config, error) {
	cfg, err := d.Load(ctx)
	if err != nil {
		return ldapclient.Config{}, err
	}
	return Masked(cfg), nil
}

// Load returns the configuration with the plaintext secret. It is for opening sessions only.
func (d *DirectoryConfigStore) Load(ctx context.Context) (ldapclient.Config, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg, sealed, err := d.read(ctx)
	if err != nil {
		return ldapclient.Config{}, err
	}
	if sealed != "" {
		if cfg.BindSecret, err = d.cipher.Open(sealed); err != nil {
			return ldapclient.Config{}, fmt.Errorf("failed to unseal bind secret: %w", err)
		}
	}
	return cfg, nil
}

// Save validates and stores cfg. A BindSecret that is empty or equal to the mask keeps the stored
// secret. The saved configuration is returned masked.
func (d *DirectoryConfigStore) Save(ctx context.Context, cfg ldapclient.Config) (ldapclient.Config, error) {
	if err := cfg.Validate(); err != nil {
		return ldapclient.Config{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	secret := cfg.BindSecret
	sealed := ""
	if secret == "" || secret == tools.SecretMask {
		_, existing, err := d.read(ctx)
		if err != nil && !errors.Is(err, ErrNotConfigured) {
			return ldapclient.Config{}, err
		}
		sealed = existing
	} else {
		var err error
		if sealed, err = d.cipher.Seal(secret); err != nil {
			return ldapclient.Config{}, err
		}
	}

	cfg.BindSecret = ""
	body, err := json.Marshal(cfg)
	if err != nil {
		return ldapclient.Config{}, fmt.Errorf("failed to encode directory config: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO directory_config (id, config, bind_secret, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			config = excluded.config,
			bind_secret = excluded.bind_secret,
			updated_at = excluded.updated_at
	`, string(body), sealed, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return ldapclient.Config{}, fmt.Errorf("failed to save directory config: %w", err)
	}

	tools.Fields(logrus.Fields{
		"server":       cfg.Server,
		"protocol":     cfg.Protocol,
		"base_dn":      cfg.BaseDN,
		"bind_account": cfg.BindAccount,
		"rotated":      secret != "" && secret != tools.SecretMask,
	}).Info("Directory configuration saved")

	if sealed != "" {
		cfg.BindSecret = tools.SecretMask
	}
	return cfg, nil
}

// Bootstrap saves cfg only when nothing is stored yet. It reports whether it wrote.
func (d *DirectoryConfigStore) Bootstrap(ctx context.Context, cfg ldapclient.Config) (bool, error) {
	d.mu.Lock()
	_, _, err := d.read(ctx)
	d.mu.Unlock()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotConfigured) {
		return false, err
	}
	if _, err := d.Save(ctx, cfg); err != nil {
		return false, err
	}
	return true, nil
}

func (d *DirectoryConfigStore) read(ctx context.Context) (ldapclient.Config, string, error) {
	var body, sealed string
	err := d.db.QueryRowContext(ctx, `SELECT config, bind_secret FROM directory_config WHERE id = 1`).Scan(&body, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return ldapclient.Config{}, "", ErrNotConfigured
	}
	if err != nil {
		return ldapclient.Config{}, "", fmt.Errorf("failed to read directory config: %w", err)
	}
	var cfg ldapclient.Config
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return ldapclient.Config{}, "", fmt.Errorf("failed to decode directory config: %w", err)
	}
	return cfg, sealed, nil
}

// Masked returns cfg with a non-empty secret replaced by tools.SecretMask.
func Masked(cfg ldapclient.Config) ldapclient.Config {
	if cfg.BindSecret != "" {
		cfg.BindSecret = tools.SecretMask
	}
	return cfg
}
