package libnotes

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TimeFromToken retrieves datetime from a change feed cursor.
// An empty cursor means the beginning of the feed.
func TimeFromToken(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, nil
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "could not decode cursor")
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 2 || parts[0] != "2" {
		// Only `2:4745362752134567' (Unix timestamp in nanoseconds) is supported.
		return time.Time{}, errors.Errorf("unsupported cursor version: %s", raw)
	}

	timestamp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "could not parse cursor timestamp")
	}
	return time.Unix(0, timestamp).UTC(), nil
}

// TokenFromTime generates a change feed cursor for given time.
func TokenFromTime(t time.Time) (token string) {
	token = fmt.Sprintf("2:%d", t.UTC().UnixNano())

	// meh, there aren't none ASCII characters in a Unix timestamp.
	return base64.URLEncoding.EncodeToString([]byte(token))
}
