// Package client implements the notes command line application on top of the sync engine.
package client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mdouchement/notesync/internal/config"
	"github.com/mdouchement/notesync/internal/connectivity"
	"github.com/mdouchement/notesync/internal/database"
	"github.com/mdouchement/notesync/internal/device"
	"github.com/mdouchement/notesync/internal/logger"
	"github.com/mdouchement/notesync/internal/remote"
	"github.com/mdouchement/notesync/internal/syncer"
	"github.com/mdouchement/notesync/pkg/libnotes"
	"github.com/mdouchement/notesync/pkg/stormcodec"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// An App holds the local database and the sync engine of the current user.
type App struct {
	Config config.Client
	Logger *logrus.Logger
	Sync   *syncer.Orchestrator
	Out    io.Writer

	store   *database.Queue
	offline bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Open loads the given configuration file and opens the application.
func Open(filename string, offline bool, out io.Writer) (*App, error) {
	cfg, err := config.LoadClient(filename)
	if err != nil {
		return nil, errors.Wrap(err, "could not load config")
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	return OpenWith(cfg, log, offline, out)
}

// OpenWith opens the application with the given configuration.
// When offline is true, the remote server is never contacted.
func OpenWith(cfg config.Client, log *logrus.Logger, offline bool, out io.Writer) (*App, error) {
	codec, err := stormcodec.Lookup(cfg.DatabaseCodec)
	if err != nil {
		return nil, err
	}

	// Init is idempotent, buckets and indexes are created on first run.
	if err = database.StormInit(cfg.DatabasePath, codec); err != nil {
		return nil, err
	}
	db, err := database.StormOpen(cfg.DatabasePath, codec)
	if err != nil {
		return nil, err
	}
	store := database.NewQueue(db)

	client, err := libnotes.NewDefaultClient(cfg.Endpoint)
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "could not create notecloud client")
	}
	client.SetBearerToken(cfg.Token)
	cloud := remote.NewHTTP(client, cfg.Sync.PollInterval, log)

	gate := connectivity.NewSwitch(false)
	orchestrator, err := syncer.New(syncer.Options{
		Store:         store,
		Remote:        cloud,
		Device:        device.New(store),
		Gate:          gate,
		Workers:       cfg.Sync.Workers,
		BackoffBase:   cfg.Sync.BackoffBase,
		BackoffMax:    cfg.Sync.BackoffMax,
		WatchDebounce: cfg.Sync.WatchDebounce,
		Logger:        log,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:  cfg,
		Logger:  log,
		Sync:    orchestrator,
		Out:     out,
		store:   store,
		offline: offline,
		cancel:  cancel,
	}

	if !offline {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			connectivity.Probe(ctx, gate, cloud, cfg.Sync.OnlineCheckInterval, log)
		}()
	}

	return app, nil
}

// Close stops the sync engine and closes the database.
func (a *App) Close() error {
	a.Sync.Close()
	a.cancel()
	a.wg.Wait()
	return a.store.Close()
}

// Flush waits for the scheduled pushes, at most the given duration.
// Notes not pushed in time stay pending and are pushed by the next sync.
func (a *App) Flush(timeout time.Duration) error {
	if a.offline {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.Sync.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(a.Out, "%d note(s) still pending, they will be pushed by the next sync\n", a.Sync.Pending())
			return nil
		}
		return err
	}
	return nil
}
