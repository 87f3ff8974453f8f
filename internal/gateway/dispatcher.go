package gateway

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Dispatcher routes intercepted requests to the first handler whose path
// prefix matches. Method decides intent: GET and HEAD are reads,
// everything else is a write.
type Dispatcher struct {
	handlers []*Handler
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over the given handlers, matched in
// order.
func NewDispatcher(logger *zap.Logger, handlers ...*Handler) *Dispatcher {
	return &Dispatcher{handlers: handlers, logger: logger}
}

// Dispatch forwards the request to the matching handler. Unmatched paths
// get a JSON 404; the gateway only fronts the known endpoint families.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	for _, h := range d.handlers {
		if !h.Handles(req.Path) {
			continue
		}
		if req.IsRead() {
			return h.OnRead(ctx, req)
		}
		return h.OnWrite(ctx, req)
	}

	d.logger.Warn("no handler for intercepted path",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
	)
	return &Response{
		Status: http.StatusNotFound,
		Body:   []byte(`{"error":"unknown endpoint"}`),
	}
}
