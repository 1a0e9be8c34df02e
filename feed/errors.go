package feed

import "errors"

var (
	// ErrHubClosed is returned by ServeHTTP after Close.
	ErrHubClosed = errors.New("feed: hub closed")
)
