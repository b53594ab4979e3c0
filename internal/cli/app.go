package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/config"
	"github.com/matthewdavidson09/onboard-sync/internal/hris"
	"github.com/matthewdavidson09/onboard-sync/internal/hrsync"
	"github.com/matthewdavidson09/onboard-sync/internal/schedule"
	"github.com/matthewdavidson09/onboard-sync/internal/security"
	"github.com/matthewdavidson09/onboard-sync/internal/store"
	"github.com/matthewdavidson09/onboard-sync/tools"
)

// app is the wired object graph every command works against.
type app struct {
	cfg       config.Config
	store     *store.Store
	directory *store.DirectoryConfigStore
	engine    *hrsync.Engine
	schedule  *schedule.Service
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	cipher, err := security.NewSecretCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	directory := st.DirectoryConfig(cipher)
	if cfg.HasDirectory() {
		wrote, err := directory.Bootstrap(ctx, cfg.Directory)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to bootstrap directory config: %w", err)
		}
		if wrote {
			tools.Log.WithField("server", cfg.Directory.Server).Info("Directory configuration seeded from environment")
		}
	}

	engine := hrsync.NewEngine(directory, hris.NewFileSource(cfg.RosterPath),
		hrsync.WithAuditSink(audit.Multi{audit.LogSink{}, st.Audit()}),
		hrsync.WithSessionOptions(opts.sessionOpts...),
	)

	return &app{
		cfg:       cfg,
		store:     st,
		directory: directory,
		engine:    engine,
		schedule:  schedule.NewService(st),
	}, nil
}

func (a *app) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, opts *RootOptions, fn func(*app) error) (err error) {
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(a)
}
