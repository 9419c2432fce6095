package crawl

import "fmt"

// TransportError is the single failure class for page and image fetches:
// non-success status, timeout, DNS or connection failure. Parse problems are
// never errors; they degrade to absent fields upstream.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
