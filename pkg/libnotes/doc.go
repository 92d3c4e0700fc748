//
// libnotes is a client that interacts with a notecloud server for syncing notes across devices.
//

// Create client
//
//	client, err := libnotes.NewDefaultClient("https://notes.nas.lan")
//	if err != nil {
//		log.Fatal(err)
//	}
//	client.SetBearerToken("shared-secret")
//
// Push a note
//
//	now := time.Now()
//	err = client.UpsertNote(ctx, "george", libnotes.Note{
//		ID:                 "d989ccc9-15c6-475e-839b-1690bd07d073",
//		Kind:               libnotes.KindText,
//		Title:              "The Title",
//		Body:               "The text",
//		CreatedAt:          now,
//		UpdatedAt:          now,
//		LastEditedByDevice: "laptop",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Follow the change feed
//
//	var cursor string
//	for {
//		changes, err := client.Changes(ctx, "george", cursor, 100)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		for _, change := range changes.Changes {
//			fmt.Println(change.Type, change.Note.ID, change.Note.Title)
//		}
//
//		cursor = changes.Cursor
//		if !changes.More {
//			break
//		}
//	}
package libnotes
