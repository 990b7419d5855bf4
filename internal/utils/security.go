package contextutils

import (
	"strings"
)

// MaskDatabaseURL hides the credentials of a connection URL for logging.
// Strings without a scheme or without credentials are returned unchanged.
func MaskDatabaseURL(url string) string {
	scheme, rest, found := strings.Cut(url, "://")
	if !found {
		return url
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***:***@" + rest[at+1:]
	}
	return url
}
