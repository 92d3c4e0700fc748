package libnotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

type (
	// A Client defines all interactions that can be performed on a notecloud server.
	Client interface {
		// Version returns the version of the notecloud server.
		// It is also used as a cheap reachability check.
		Version(ctx context.Context) (string, error)
		// BearerToken returns the authentication used for requests sent to the notecloud server.
		BearerToken() string
		// SetBearerToken sets the authentication used for requests sent to the notecloud server.
		SetBearerToken(token string)
		// UpsertNote creates or replaces the given note of the given owner.
		UpsertNote(ctx context.Context, ownerID string, note Note) error
		// DeleteNote removes the note of the given owner.
		// Deleting an unknown note is not an error.
		DeleteNote(ctx context.Context, ownerID, id string) error
		// Changes returns the changes made after the given cursor.
		// An empty cursor returns the whole collection. limit equals to 0 means the server default.
		Changes(ctx context.Context, ownerID, cursor string, limit int) (*ChangeSet, error)
	}

	client struct {
		http     *http.Client
		endpoint string
		bearer   string
	}
)

// NewDefaultClient returns a new Client with a default HTTP client.
func NewDefaultClient(endpoint string) (Client, error) {
	return NewClient(&http.Client{Timeout: 30 * time.Second}, endpoint)
}

// NewClient returns a new Client.
func NewClient(c *http.Client, endpoint string) (Client, error) {
	_, err := url.Parse(endpoint)
	return &client{endpoint: endpoint, http: c}, errors.Wrap(err, "could not parse endpoint")
}

func (c *client) BearerToken() string {
	return c.bearer
}

func (c *client) SetBearerToken(token string) {
	c.bearer = token
}

func (c *client) Version(ctx context.Context) (string, error) {
	var version struct {
		Version string `json:"version"`
	}
	err := c.do(ctx, http.MethodGet, "/version", nil, nil, &version)
	return version.Version, err
}

func (c *client) UpsertNote(ctx context.Context, ownerID string, note Note) error {
	note.OwnerID = ownerID
	return c.do(ctx, http.MethodPut, notePath(ownerID, note.ID), nil, note, nil)
}

func (c *client) DeleteNote(ctx context.Context, ownerID, id string) error {
	return c.do(ctx, http.MethodDelete, notePath(ownerID, id), nil, nil, nil)
}

func (c *client) Changes(ctx context.Context, ownerID, cursor string, limit int) (*ChangeSet, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var changes ChangeSet
	err := c.do(ctx, http.MethodGet, path.Join("/owners", ownerID, "changes"), query, nil, &changes)
	if err != nil {
		return nil, err
	}
	return &changes, nil
}

func (c *client) do(ctx context.Context, method, p string, query url.Values, payload, result any) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return errors.Wrap(err, "could not parse endpoint")
	}
	u.Path = path.Join(u.Path, p)
	u.RawQuery = query.Encode()

	//
	// Build request
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "could not serialize payload")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "could not build request")
	}
	req.Close = true
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	if c.bearer != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.bearer))
	}

	//
	// Perform request
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "could not perform request")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return parseError(res.Body, res.StatusCode)
	}

	if result == nil {
		return nil
	}

	//
	// Process response
	dec := json.NewDecoder(res.Body)
	return errors.Wrap(dec.Decode(result), "could not parse response")
}

func notePath(ownerID, id string) string {
	return path.Join("/owners", ownerID, "notes", id)
}
