// Package gateway implements request interception for the offline-capable
// web client. Each endpoint handler fronts one upstream API path prefix:
// reads pass through to the network and opportunistically update the local
// cache, and when the network is unavailable a response is synthesized from
// cached records and tagged "offline": true.
package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// Request is the gateway's view of an intercepted HTTP request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// IsRead reports whether the request carries read intent.
func (r *Request) IsRead() bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == ""
}

// Response is an HTTP-like response. Body is always JSON.
type Response struct {
	Status int
	Body   []byte
}

// Fetcher performs the network attempt for an intercepted request.
// Implementations return an error only for transport-level failures; any
// received HTTP response, whatever its status code, is a success.
type Fetcher interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}
