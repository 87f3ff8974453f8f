package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"offgate/internal/metrics"
	"offgate/internal/store"
)

// offlineErrorBody is returned by write operations when the upstream is
// unreachable. The web client matches on this exact shape.
var offlineErrorBody = []byte(`{"error":"offline"}`)

// Endpoint configures one handler instance: the fixed path prefix it owns,
// the cache collection behind it, how items are keyed, and how a response
// is rebuilt from the cache when the upstream is unreachable. Four
// instances cover the client's API surface; the control flow lives in
// Handler and is shared.
type Endpoint struct {
	Name       string
	Prefix     string
	Collection string

	// ListField and SingleField name the JSON body fields carrying a list
	// of items or one item. Both empty means the whole body is the item.
	ListField   string
	SingleField string

	// Key extracts the natural identifier from a decoded item.
	Key func(item json.RawMessage) (string, error)

	// Offline rebuilds a response body from cached records. The returned
	// map is tagged with the offline marker and pretty-printed by the
	// handler.
	Offline func(ctx context.Context, st store.Store, q *Query) (map[string]any, error)

	// WriteThrough, when set, persists items from a successfully written
	// request body.
	WriteThrough func(ctx context.Context, st store.Store, body []byte) error
}

// Handler serves one endpoint family with offline fallback.
type Handler struct {
	ep      Endpoint
	store   store.Store
	fetcher Fetcher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler creates a handler for one endpoint.
func NewHandler(ep Endpoint, st store.Store, fetcher Fetcher, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		ep:      ep,
		store:   st,
		fetcher: fetcher,
		metrics: m,
		logger:  logger.With(zap.String("endpoint", ep.Name)),
	}
}

// Name returns the endpoint name.
func (h *Handler) Name() string {
	return h.ep.Name
}

// Handles reports whether path belongs to this endpoint.
func (h *Handler) Handles(path string) bool {
	return strings.HasPrefix(path, h.ep.Prefix)
}

// OnRead attempts the network request. On success the response body is
// decoded and its items upserted into the cache before the response is
// returned unchanged. On network failure a response is synthesized from
// the cache and tagged "offline": true.
func (h *Handler) OnRead(ctx context.Context, req *Request) *Response {
	resp, err := h.fetcher.Do(ctx, req)
	if err != nil {
		h.metrics.UpstreamRequests.WithLabelValues(h.ep.Name, metrics.ResultError).Inc()
		h.metrics.OfflineFallbacks.WithLabelValues(h.ep.Name).Inc()
		h.logger.Info("upstream unreachable, serving cached response",
			zap.String("path", req.Path),
			zap.Error(err),
		)
		return h.offline(ctx, req)
	}

	h.metrics.UpstreamRequests.WithLabelValues(h.ep.Name, metrics.ResultOK).Inc()
	h.cache(ctx, resp)
	return resp
}

// OnWrite forwards the request to the network. On network failure it
// returns the synthetic offline error body; there is no write buffering
// or replay.
func (h *Handler) OnWrite(ctx context.Context, req *Request) *Response {
	resp, err := h.fetcher.Do(ctx, req)
	if err != nil {
		h.metrics.UpstreamRequests.WithLabelValues(h.ep.Name, metrics.ResultError).Inc()
		h.logger.Info("upstream unreachable, rejecting write",
			zap.String("path", req.Path),
			zap.Error(err),
		)
		return &Response{Status: http.StatusServiceUnavailable, Body: offlineErrorBody}
	}

	h.metrics.UpstreamRequests.WithLabelValues(h.ep.Name, metrics.ResultOK).Inc()
	if h.ep.WriteThrough != nil && success(resp.Status) {
		if err := h.ep.WriteThrough(ctx, h.store, req.Body); err != nil {
			h.logger.Warn("write-through cache update failed", zap.Error(err))
		}
	}
	return resp
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// cache upserts the items carried by a successful response body. Failures
// here never alter the returned response.
func (h *Handler) cache(ctx context.Context, resp *Response) {
	if !success(resp.Status) {
		return
	}

	p, err := decodePayload(resp.Body, h.ep.ListField, h.ep.SingleField)
	if err != nil {
		h.logger.Debug("response body did not decode, skipping cache update", zap.Error(err))
		return
	}

	switch p.kind {
	case payloadList:
		entries := make([]store.Entry, 0, len(p.items))
		for _, item := range p.items {
			key, err := h.ep.Key(item)
			if err != nil {
				h.logger.Warn("skipping item without a usable key", zap.Error(err))
				continue
			}
			entries = append(entries, store.Entry{Key: key, Value: item})
		}
		if len(entries) == 0 {
			return
		}
		if err := h.store.PutAll(ctx, h.ep.Collection, entries); err != nil {
			h.logger.Warn("cache batch upsert failed", zap.Error(err))
			return
		}
		h.metrics.CacheUpserts.WithLabelValues(h.ep.Name).Add(float64(len(entries)))

	case payloadSingle:
		key, err := h.ep.Key(p.item)
		if err != nil {
			h.logger.Warn("skipping item without a usable key", zap.Error(err))
			return
		}
		if err := h.store.Put(ctx, h.ep.Collection, key, p.item); err != nil {
			h.logger.Warn("cache upsert failed", zap.Error(err))
			return
		}
		h.metrics.CacheUpserts.WithLabelValues(h.ep.Name).Inc()

	case payloadAbsent:
		// Nothing recognizable to cache.
	}
}

// offline synthesizes a response from cached records. A secondary failure
// (malformed query, store error) degrades to an empty list.
func (h *Handler) offline(ctx context.Context, req *Request) *Response {
	var body map[string]any

	q, err := ParseQuery(req.Query)
	if err == nil {
		body, err = h.ep.Offline(ctx, h.store, q)
	}
	if err != nil {
		h.logger.Warn("offline reconstruction failed, degrading to empty list",
			zap.String("path", req.Path),
			zap.Error(err),
		)
		body = map[string]any{}
		if h.ep.ListField != "" {
			body[h.ep.ListField] = []any{}
		}
	}

	body["offline"] = true
	buf, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		h.logger.Error("failed to encode offline response", zap.Error(err))
		buf = append([]byte(nil), offlineErrorBody...)
	}
	return &Response{Status: http.StatusOK, Body: buf}
}
