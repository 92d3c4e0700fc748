// Package config loads the YAML configuration files of the binaries.
package config

import (
	"path/filepath"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/mdouchement/notesync/internal/logger"
	"github.com/pkg/errors"
)

type (
	// A Client holds the configuration of the notes client.
	Client struct {
		DatabasePath  string
		DatabaseCodec string
		Endpoint      string
		Token         string
		Owner         string
		Log           logger.Config
		Sync          Sync
	}

	// A Sync holds the tuning of the synchronization engine.
	Sync struct {
		Workers             int
		BackoffBase         time.Duration
		BackoffMax          time.Duration
		PollInterval        time.Duration
		OnlineCheckInterval time.Duration
		WatchDebounce       time.Duration
	}

	// A Server holds the configuration of the notecloud server.
	Server struct {
		Address      string
		DatabasePath string
		Token        string
		FeedLimit    int
	}
)

const (
	clientDBName = "notes.db"
	serverDBName = "notecloud.db"
)

var clientDefaults = map[string]any{
	"database_path":              "",
	"database_codec":             "msgpack",
	"endpoint":                   "http://localhost:5000",
	"log.level":                  "info",
	"sync.workers":               4,
	"sync.backoff_base":          "1s",
	"sync.backoff_max":           "5m",
	"sync.poll_interval":         "5s",
	"sync.online_check_interval": "15s",
	"sync.watch_debounce":        "100ms",
}

var serverDefaults = map[string]any{
	"address":       "localhost:5000",
	"database_path": "",
	"feed_limit":    500,
}

// LoadClient reads the client configuration from the given YAML file.
// An empty filename returns the defaults.
func LoadClient(filename string) (Client, error) {
	konf, err := load(filename, clientDefaults)
	if err != nil {
		return Client{}, err
	}

	cfg := Client{
		DatabasePath:  withDBName(konf.String("database_path"), clientDBName),
		DatabaseCodec: konf.String("database_codec"),
		Endpoint:      konf.String("endpoint"),
		Token:         konf.String("token"),
		Owner:         konf.String("owner"),
		Log: logger.Config{
			Level: konf.String("log.level"),
			File:  konf.String("log.file"),
			Quiet: konf.Bool("log.quiet"),
		},
		Sync: Sync{
			Workers:             konf.Int("sync.workers"),
			BackoffBase:         konf.Duration("sync.backoff_base"),
			BackoffMax:          konf.Duration("sync.backoff_max"),
			PollInterval:        konf.Duration("sync.poll_interval"),
			OnlineCheckInterval: konf.Duration("sync.online_check_interval"),
			WatchDebounce:       konf.Duration("sync.watch_debounce"),
		},
	}

	if cfg.Owner == "" {
		return cfg, errors.New("owner not found")
	}
	if cfg.Sync.Workers < 1 {
		return cfg, errors.New("sync.workers must be greater than 0")
	}
	if cfg.Sync.BackoffBase <= 0 || cfg.Sync.BackoffMax < cfg.Sync.BackoffBase {
		return cfg, errors.New("invalid sync backoff durations")
	}
	return cfg, nil
}

// LoadServer reads the server configuration from the given YAML file.
func LoadServer(filename string) (Server, error) {
	konf, err := load(filename, serverDefaults)
	if err != nil {
		return Server{}, err
	}

	return Server{
		Address:      konf.String("address"),
		DatabasePath: withDBName(konf.String("database_path"), serverDBName),
		Token:        konf.String("token"),
		FeedLimit:    konf.Int("feed_limit"),
	}, nil
}

func load(filename string, defaults map[string]any) (*koanf.Koanf, error) {
	konf := koanf.New(".")
	if err := konf.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "could not load defaults")
	}

	if filename == "" {
		return konf, nil
	}

	if err := konf.Load(file.Provider(filename), yaml.Parser()); err != nil {
		return nil, errors.Wrap(err, "could not load configuration file")
	}
	return konf, nil
}

func withDBName(path, name string) string {
	if len(path) == 0 {
		return name
	}
	return filepath.Join(path, name)
}
