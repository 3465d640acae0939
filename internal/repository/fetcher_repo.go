package repository

import "context"

// Fetcher retrieves the body of a URL. Implementations return ErrPageUnreachable
// when the request cannot be made at all and a *StatusError when the server
// answers with anything but 200.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
