package main

import (
	"fmt"
	"log"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/mdouchement/notesync/pkg/stormcodec"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
)

var codecName string

func main() {
	c := &coral.Command{
		Use:   "rmowner DATABASE OWNER",
		Short: "Remove all the notes of an owner from a notes or notecloud database",
		Args:  coral.ExactArgs(2),
		RunE: func(_ *coral.Command, args []string) error {
			codec, err := stormcodec.Lookup(codecName)
			if err != nil {
				return err
			}

			//
			//
			fmt.Println("Opening", args[0])
			db, err := storm.Open(args[0], storm.Codec(codec))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			// Server-side documents, tombstones included
			n, err := db.Select(q.Eq("OwnerID", args[1])).Count(&model.Document{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "count documents")
			}
			err = db.Select(q.Eq("OwnerID", args[1])).Delete(&model.Document{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "delete documents")
			}
			fmt.Println("Documents removed:", n)

			// Client-side notes
			n, err = db.Select(q.Eq("OwnerID", args[1])).Count(&model.Note{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "count notes")
			}
			err = db.Select(q.Eq("OwnerID", args[1])).Delete(&model.Note{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "delete notes")
			}
			fmt.Println("Notes removed:", n)

			err = db.Select(q.Eq("OwnerID", args[1])).Delete(&model.PurgeReceipt{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "delete purge receipts")
			}

			return nil
		},
	}
	c.Flags().StringVar(&codecName, "codec", "", fmt.Sprintf("Storage codec of the database %v", stormcodec.Names()))

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}
