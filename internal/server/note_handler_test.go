package server_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/appleboy/gofight/v2"
	"github.com/mdouchement/notesync/pkg/libnotes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

func TestRequestNoteUpsert(t *testing.T) {
	engine, ctrl, r, cleanup := setup()
	defer cleanup()

	r.PUT("/owners/george/notes/n1").SetHeader(header).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"message":"Request body can't be empty"}}`, r.Body.String())
	})

	r.PUT("/owners/george/notes/n1").SetHeader(gofight.H{
		"Authorization": "Bearer secret",
		"Content-Type":  "application/json",
	}).SetBody(`{"title":`).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"message":"Could not get note."}}`, r.Body.String())
	})

	r.PUT("/owners/george/notes/n1").SetHeader(header).SetJSON(gofight.D{
		"id":    "n2",
		"title": "Title",
	}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"message":"Note id does not match the URL."}}`, r.Body.String())
	})

	r.PUT("/owners/george/notes/n1").SetHeader(header).SetJSON(gofight.D{
		"title": "Title",
	}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"message":"Note updated_at is required."}}`, r.Body.String())
	})

	updatedAt := "2024-04-05T19:34:38.123456789Z"
	r.PUT("/owners/george/notes/n1").SetHeader(header).SetJSON(gofight.D{
		"kind":                  "text",
		"title":                 "Title",
		"body":                  "Body",
		"created_at":            updatedAt,
		"updated_at":            updatedAt,
		"last_edited_by_device": "laptop",
	}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		assert.Equal(t, "n1", string(v.GetStringBytes("note", "id")))
		assert.Equal(t, "george", string(v.GetStringBytes("note", "owner_id")))
		assert.Equal(t, updatedAt, string(v.GetStringBytes("note", "updated_at")))
		assert.Equal(t, "laptop", string(v.GetStringBytes("note", "last_edited_by_device")))
		assert.NotEmpty(t, v.GetStringBytes("changed_at"))
	})

	document, err := ctrl.Database.FindDocument("george", "n1")
	require.NoError(t, err)
	assert.Equal(t, "Title", document.Note.Payload.Title)
	assert.False(t, document.Removed)
}

func TestRequestNoteDelete(t *testing.T) {
	engine, ctrl, r, cleanup := setup()
	defer cleanup()

	// Unknown notes are deleted successfully.
	r.DELETE("/owners/george/notes/n1").SetHeader(header).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})

	upsert(t, r, engine, "george", "n1", time.Now())

	for i := 0; i < 2; i++ {
		r.DELETE("/owners/george/notes/n1").SetHeader(header).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusNoContent, r.Code)
		})
	}

	document, err := ctrl.Database.FindDocument("george", "n1")
	require.NoError(t, err)
	assert.True(t, document.Removed)
	assert.True(t, document.Note.Purged)
}

func TestRequestNoteChanges(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	base := time.Now().UTC()
	upsert(t, r, engine, "george", "n1", base.Add(1*time.Second))
	upsert(t, r, engine, "george", "n2", base.Add(3*time.Second))
	upsert(t, r, engine, "george", "n3", base.Add(2*time.Second))
	upsert(t, r, engine, "robert", "n4", base)

	// FeedLimit is 2 so the collection spans two pages.
	page := changes(t, r, engine, "george", "")
	assert.True(t, page.More)
	assert.Equal(t, []string{"added:n2", "added:n1"}, summary(page))

	page = changes(t, r, engine, "george", page.Cursor)
	assert.False(t, page.More)
	assert.Equal(t, []string{"added:n3"}, summary(page))
	cursor := page.Cursor

	upsert(t, r, engine, "george", "n1", base.Add(4*time.Second))
	r.DELETE("/owners/george/notes/n2").SetHeader(header).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
	})
	upsert(t, r, engine, "george", "n5", base.Add(5*time.Second))

	page = changes(t, r, engine, "george", cursor)
	assert.True(t, page.More)
	assert.Equal(t, []string{"modified:n1", "removed:n2"}, summary(page))
	assert.True(t, page.Changes[1].Note.Purged)

	page = changes(t, r, engine, "george", page.Cursor)
	assert.False(t, page.More)
	assert.Equal(t, []string{"added:n5"}, summary(page))

	// Up to date.
	last := page.Cursor
	page = changes(t, r, engine, "george", last)
	assert.Empty(t, page.Changes)
	assert.Equal(t, last, page.Cursor)

	// A fresh client replays the whole collection, tombstones included.
	page = changes(t, r, engine, "george", "")
	assert.Equal(t, []string{"added:n1", "added:n3"}, summary(page))
	page = changes(t, r, engine, "george", page.Cursor)
	assert.Equal(t, []string{"added:n5", "removed:n2"}, summary(page))

	r.GET("/owners/george/changes?cursor=nope").SetHeader(header).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"invalid-cursor","message":"Invalid cursor."}}`, r.Body.String())
	})

	r.GET("/owners/george/changes?limit=-1").SetHeader(header).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})
}

func upsert(t *testing.T, r *gofight.RequestConfig, engine http.Handler, owner, id string, updatedAt time.Time) {
	r.PUT("/owners/"+owner+"/notes/"+id).SetHeader(header).SetJSON(gofight.D{
		"title":      "Title " + id,
		"created_at": updatedAt.Format(time.RFC3339Nano),
		"updated_at": updatedAt.Format(time.RFC3339Nano),
	}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		require.Equal(t, http.StatusOK, r.Code, r.Body.String())
	})
}

func changes(t *testing.T, r *gofight.RequestConfig, engine http.Handler, owner, cursor string) (page libnotes.ChangeSet) {
	r.GET("/owners/"+owner+"/changes?cursor="+cursor).SetHeader(header).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		require.Equal(t, http.StatusOK, r.Code, r.Body.String())
		require.NoError(t, json.Unmarshal(r.Body.Bytes(), &page))
	})
	return page
}

func summary(page libnotes.ChangeSet) []string {
	s := make([]string, 0, len(page.Changes))
	for _, c := range page.Changes {
		s = append(s, c.Type+":"+c.Note.ID)
	}
	return s
}
