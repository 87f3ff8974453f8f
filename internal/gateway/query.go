package gateway

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Query holds the recognized offline-read parameters. Unrecognized
// parameters are ignored.
type Query struct {
	// URL selects a single record by exact key match.
	URL string `validate:"omitempty,max=2048"`

	// Starred filters notifications to starred ones when true.
	Starred *bool

	// Offset and Limit paginate list responses.
	Offset *int `validate:"omitempty,min=0"`
	Limit  *int `validate:"omitempty,min=0"`
}

// ParseQuery extracts and validates the recognized parameters. A malformed
// parameter is an error; callers degrade to an empty list rather than
// failing the request.
func ParseQuery(values url.Values) (*Query, error) {
	q := &Query{URL: values.Get("url")}

	if v := values.Get("starred"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("starred must be a boolean, got %q", v)
		}
		q.Starred = &b
	}

	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("offset must be an integer, got %q", v)
		}
		q.Offset = &n
	}

	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("limit must be an integer, got %q", v)
		}
		q.Limit = &n
	}

	if err := validate.Struct(q); err != nil {
		return nil, err
	}
	return q, nil
}
