package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mdouchement/notesync/internal/client"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg     string
	offline bool
	timeout time.Duration
)

func main() {
	c := &cobra.Command{
		Use:     "notes",
		Short:   "Offline-first notes synchronized with a notecloud server",
		Version: fmt.Sprintf("%s - build %.7s @ %s", version, revision, date),
		Args:    cobra.NoArgs,
	}
	c.PersistentFlags().StringVarP(&cfg, "config", "c", "notes.yml", "Configuration file")
	c.PersistentFlags().BoolVar(&offline, "offline", false, "Never contact the notecloud server")
	c.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Maximum time spent pushing the changes")

	addCmd.Flags().StringVarP(&title, "title", "t", "", "Title of the note")
	addCmd.Flags().StringVarP(&body, "body", "b", "", "Body of the note")
	addCmd.Flags().StringVar(&canvas, "canvas", "", "Path of the canvas image, makes a canvas note")
	c.AddCommand(addCmd)

	editCmd.Flags().StringVarP(&title, "title", "t", "", "New title of the note")
	editCmd.Flags().StringVarP(&body, "body", "b", "", "New body of the note")
	editCmd.Flags().StringVar(&canvas, "canvas", "", "New path of the canvas image")
	c.AddCommand(editCmd)

	c.AddCommand(trashCmd)
	c.AddCommand(restoreCmd)
	c.AddCommand(purgeCmd)

	listCmd.Flags().StringVar(&since, "since", "", "Only notes updated after this date")
	c.AddCommand(listCmd)
	trashListCmd.Flags().StringVar(&since, "since", "", "Only notes updated after this date")
	c.AddCommand(trashListCmd)

	showCmd.Flags().BoolVar(&raw, "raw", false, "Dump the whole local record")
	c.AddCommand(showCmd)

	c.AddCommand(syncCmd)
	c.AddCommand(signoutCmd)
	c.AddCommand(deviceCmd)
	c.AddCommand(backupCmd)

	if err := c.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var (
	title  string
	body   string
	canvas string
	since  string
	raw    bool
)

// run opens the application, runs fn and then flushes the pushes it scheduled.
func run(fn func(app *client.App) error) error {
	app, err := client.Open(cfg, offline, os.Stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	if err = fn(app); err != nil {
		return err
	}
	return app.Flush(timeout)
}

func payload() model.Payload {
	p := model.Payload{
		Title: title,
		Body:  body,
	}
	if canvas != "" {
		p.Kind = model.KindCanvas
		p.CanvasImagePath = canvas
	}
	return p
}

func parseSince() (time.Time, error) {
	if since == "" {
		return time.Time{}, nil
	}

	t, err := dateparse.ParseLocal(since)
	return t, errors.Wrap(err, "could not parse since date")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var (
	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p := payload()
			if err := client.Prompt(&p); err != nil {
				return err
			}

			return run(func(app *client.App) error {
				_, err := app.Add(p)
				return err
			})
		},
	}

	editCmd = &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p := payload()
			if p.Title == "" && p.Body == "" && p.CanvasImagePath == "" {
				if err := client.Prompt(&p); err != nil {
					return err
				}
			}

			return run(func(app *client.App) error {
				return app.Edit(args[0], p)
			})
		},
	}

	trashCmd = &cobra.Command{
		Use:   "trash ID",
		Short: "Move a note to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(app *client.App) error {
				return app.Sync.Trash(args[0])
			})
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore ID",
		Short: "Move a note out of the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(app *client.App) error {
				return app.Sync.Restore(args[0])
			})
		},
	}

	purgeCmd = &cobra.Command{
		Use:   "purge ID",
		Short: "Delete a note forever",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(app *client.App) error {
				return app.Sync.Purge(args[0])
			})
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the notes",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			t, err := parseSince()
			if err != nil {
				return err
			}

			return run(func(app *client.App) error {
				return app.List(false, t)
			})
		},
	}

	trashListCmd = &cobra.Command{
		Use:   "trash-list",
		Short: "List the notes in the trash",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			t, err := parseSince()
			if err != nil {
				return err
			}

			return run(func(app *client.App) error {
				return app.List(true, t)
			})
		},
	}

	showCmd = &cobra.Command{
		Use:   "show ID",
		Short: "Display a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(func(app *client.App) error {
				return app.Show(args[0], raw)
			})
		},
	}

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the notes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			return run(func(app *client.App) error {
				return app.Watch(ctx)
			})
		},
	}

	signoutCmd = &cobra.Command{
		Use:   "signout",
		Short: "Remove all the local notes of the configured owner",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			return run(func(app *client.App) error {
				return app.SignOut(ctx)
			})
		},
	}

	deviceCmd = &cobra.Command{
		Use:   "device",
		Short: "Print the id of this installation",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(func(app *client.App) error {
				app.Device()
				return nil
			})
		},
	}

	backupCmd = &cobra.Command{
		Use:   "backup [DIRECTORY]",
		Short: "Backup your notes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			return run(func(app *client.App) error {
				_, err := app.Backup(dir)
				return err
			})
		},
	}
)
