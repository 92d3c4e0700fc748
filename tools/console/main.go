package main

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"

	"github.com/asdine/storm/v3"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/mdouchement/notesync/pkg/stormcodec"
	"github.com/mdouchement/notesync/pkg/stormsql"
	"github.com/mdouchement/notesync/pkg/structs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// go run tools/console/main.go notes.db " SELECT ID, Title FROM notes WHERE OwnerID = 'george' AND UpdatedAt > '2024-02-16 20:52:55' ORDER BY UpdatedAt DESC; "
// go run tools/console/main.go notecloud.db " SELECT count(*) FROM documents WHERE Removed = true; "

var codecName string

func main() {
	c := &cobra.Command{
		Use:   "console DATABASE QUERY",
		Short: "SQL console for notes and notecloud databases",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			//
			//
			sc, err := stormsql.ParseSelect(args[1])
			if err != nil {
				return err
			}

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

			//
			// Prepare request
			//

			query := db.Select(sc.Matcher)
			if sc.Skip > 0 {
				query.Skip(sc.Skip)
			}
			if sc.Limit > 0 {
				query.Limit(sc.Limit)
			}
			if len(sc.OrderBy) > 0 {
				query.OrderBy(sc.OrderBy...)
				if sc.OrderByReversed {
					query.Reverse()
				}
			}

			// Execute

			if sc.Count {
				return count(sc, query)
			}

			return list(sc, query)
		},
	}
	c.Flags().StringVar(&codecName, "codec", "", fmt.Sprintf("Storage codec of the database %v", stormcodec.Names()))

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func record(tablename string) (any, error) {
	switch tablename {
	case "notes":
		return &model.Note{}, nil
	case "documents":
		return &model.Document{}, nil
	}
	return nil, errors.Errorf("unknown tablename: %s", tablename)
}

func count(sc *stormsql.SelectClause, query storm.Query) error {
	r, err := record(sc.Tablename)
	if err != nil {
		return err
	}

	n, err := query.Count(r)
	if err != nil {
		return errors.Wrap(err, "could not perform query")
	}

	fmt.Println("Count:", n)
	return nil
}

func list(sc *stormsql.SelectClause, query storm.Query) error {
	r, err := record(sc.Tablename)
	if err != nil {
		return err
	}
	records := reflect.New(reflect.SliceOf(reflect.TypeOf(r)))

	err = query.Find(records.Interface())
	if err == storm.ErrNotFound {
		fmt.Println("[]")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "could not perform query")
	}

	if len(sc.SelectedFields) == 0 {
		jsondump(records.Interface())
		return nil
	}

	// Projection of the selected fields.
	rows := records.Elem()
	projection := make([]map[string]any, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		row, err := structs.Project(rows.Index(i).Interface(), sc.SelectedFields...)
		if err != nil {
			return err
		}
		projection = append(projection, row)
	}
	jsondump(projection)
	return nil
}

func jsondump(v any) {
	d, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(d))
}
