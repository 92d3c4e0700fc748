package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"runtime"
	"strings"

	"github.com/mdouchement/notesync/internal/config"
	"github.com/mdouchement/notesync/internal/database"
	"github.com/mdouchement/notesync/internal/logger"
	"github.com/mdouchement/notesync/internal/server"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &coral.Command{
		Use:     "notecloud",
		Short:   "Multi-device notes store",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	initCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)

	reindexCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := config.LoadServer(cfg)
			if err != nil {
				return err
			}

			return database.StormInit(konf.DatabasePath, nil)
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := config.LoadServer(cfg)
			if err != nil {
				return err
			}

			return database.StormReIndex(konf.DatabasePath, nil)
		},
	}

	//
	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start server",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := config.LoadServer(cfg)
			if err != nil {
				return err
			}

			if konf.Token == "" {
				log.Println("No token configured, the notes are served without authentication")
			}

			db, err := database.StormOpen(konf.DatabasePath, nil)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			l, err := logger.New(logger.Config{Level: "info"})
			if err != nil {
				return err
			}

			engine := server.EchoEngine(server.IOC{
				Version:   version,
				Database:  db,
				Logger:    l,
				Token:     konf.Token,
				FeedLimit: konf.FeedLimit,
			})
			server.PrintRoutes(engine)

			address := konf.Address
			message := "could not run server"
			log.Printf("Server listening on %s\n", address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					log.Printf("Removing existing %s\n", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}
)
