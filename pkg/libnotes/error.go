package libnotes

import (
	"fmt"
	"io"
	"net/http"

	"github.com/valyala/fastjson"
)

// An Error reprensents an HTTP error returned by notecloud server.
type Error struct {
	StatusCode int
	Tag        string
	Message    string
}

func parseError(r io.Reader, code int) error {
	apierr := &Error{
		StatusCode: code,
		Message:    http.StatusText(code),
	}

	payload, err := io.ReadAll(r)
	if err != nil || len(payload) == 0 {
		return apierr
	}

	// Proxies in front of the server may answer with something else than JSON.
	v, err := fastjson.ParseBytes(payload)
	if err != nil {
		return apierr
	}

	if message := v.GetStringBytes("error", "message"); len(message) > 0 {
		apierr.Message = string(message)
	}
	apierr.Tag = string(v.GetStringBytes("error", "tag"))
	return apierr
}

func (e *Error) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%d: %s (%s)", e.StatusCode, e.Message, e.Tag)
}

// Temporary returns true when sending the same request later may succeed.
func (e *Error) Temporary() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}
