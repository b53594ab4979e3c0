// Package config reads process settings from the environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/internal/security"
	"github.com/matthewdavidson09/onboard-sync/tools"
)

const (
	DefaultDBPath            = "data/onboard-sync.db"
	DefaultRosterPath        = "data/roster.yaml"
	DefaultListenAddr        = ":8080"
	DefaultSchedulerInterval = time.Minute
)

type Config struct {
	DBPath            string
	RosterPath        string
	ListenAddr        string
	EncryptionKey     string
	SchedulerInterval time.Duration

	// Directory seeds the directory config store on first start.
	Directory ldapclient.Config
}

// LoadDotEnv loads path into the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			tools.Log.WithField("path", path).Debug("No .env file, using process environment")
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds the configuration from environment variables.
func FromEnv() (Config, error) {
	interval, err := durationEnv("SCHEDULER_INTERVAL", DefaultSchedulerInterval)
	if err != nil {
		return Config{}, err
	}
	dir, err := DirectoryFromEnv()
	if err != nil {
		return Config{}, err
	}
	return Config{
		DBPath:            getenv("DB_PATH", DefaultDBPath),
		RosterPath:        getenv("HRIS_ROSTER_PATH", DefaultRosterPath),
		ListenAddr:        getenv("HTTP_ADDR", DefaultListenAddr),
		EncryptionKey:     os.Getenv(security.SecretKeyEnv),
		SchedulerInterval: interval,
		Directory:         dir,
	}, nil
}

// DirectoryFromEnv reads the LDAP_* bootstrap settings.
func DirectoryFromEnv() (ldapclient.Config, error) {
	port := 0
	if v := getenv("LDAP_PORT", ""); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return ldapclient.Config{}, fmt.Errorf("invalid LDAP_PORT %q", v)
		}
		port = p
	}
	connectTimeout, err := durationEnv("LDAP_CONNECT_TIMEOUT", 0)
	if err != nil {
		return ldapclient.Config{}, err
	}
	opTimeout, err := durationEnv("LDAP_OPERATION_TIMEOUT", 0)
	if err != nil {
		return ldapclient.Config{}, err
	}

	return ldapclient.Config{
		Server:              getenv("LDAP_SERVER", ""),
		Port:                port,
		Protocol:            ldapclient.Protocol(strings.ToLower(getenv("LDAP_PROTOCOL", string(ldapclient.ProtocolSecure)))),
		BaseDN:              getenv("BASE_DN", ""),
		BindAccount:         getenv("LDAP_USER", ""),
		BindSecret:          getenv("LDAP_PASSWORD", ""),
		AuthFormat:          ldapclient.AuthFormat(strings.ToLower(getenv("LDAP_AUTH_FORMAT", string(ldapclient.AuthFormatPrincipal)))),
		Domain:              getenv("LDAP_DOMAIN", ""),
		BindContainer:       getenv("LDAP_BIND_CONTAINER", ""),
		WorkingOU:           getenv("LDAP_WORKING_OU", ""),
		UsersContainer:      getenv("LDAP_USERS_CONTAINER", ""),
		BuiltinContainer:    getenv("LDAP_BUILTIN_CONTAINER", ""),
		BaselineGroup:       getenv("LDAP_BASELINE_GROUP", ldapclient.DefaultBaselineGroup),
		EmployeeIDAttribute: getenv("LDAP_EMPLOYEE_ID_ATTRIBUTE", ""),
		ConnectTimeout:      connectTimeout,
		OperationTimeout:    opTimeout,
	}, nil
}

// HasDirectory reports whether enough LDAP_* settings are present to bootstrap the store.
func (c Config) HasDirectory() bool {
	return c.Directory.Server != "" && c.Directory.BaseDN != "" && c.Directory.BindAccount != ""
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a duration like 30s", key, v)
	}
	return d, nil
}
