package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"offgate/internal/store"
)

// Collection names, one per domain type.
const (
	CollectionProfile       = "profile"
	CollectionBookmarks     = "bookmarks"
	CollectionWatch         = "watch"
	CollectionNotifications = "notifications"
)

// ProfileKey is the singleton key the signed-in user's record is stored
// under.
const ProfileKey = "me"

// WatchPlaceholderStatus is reported for cached watch entries. True watch
// state is not persisted, so offline reads synthesize a fixed status.
const WatchPlaceholderStatus = "major"

// IdentityEndpoint serves the signed-in user's profile. The upstream
// returns the record at the top level of the body, and offline reads merge
// the cached record with the offline marker, so an empty cache still yields
// a well-formed body.
func IdentityEndpoint() Endpoint {
	return Endpoint{
		Name:       "identity",
		Prefix:     "/api/profile",
		Collection: CollectionProfile,
		Key: func(json.RawMessage) (string, error) {
			return ProfileKey, nil
		},
		Offline: func(ctx context.Context, st store.Store, q *Query) (map[string]any, error) {
			body := map[string]any{}
			rec, err := st.Get(ctx, CollectionProfile, ProfileKey)
			if errors.Is(err, store.ErrNotFound) {
				return body, nil
			}
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(rec, &body); err != nil {
				return nil, err
			}
			return body, nil
		},
	}
}

// BookmarksEndpoint serves the user's bookmark collection, keyed by item
// URL. Offline reads answer an exact-match "url" query with one record,
// otherwise the full cached list.
func BookmarksEndpoint() Endpoint {
	return Endpoint{
		Name:        "bookmarks",
		Prefix:      "/api/bookmarks",
		Collection:  CollectionBookmarks,
		ListField:   "bookmarks",
		SingleField: "bookmark",
		Key:         itemStringKey("url", false),
		Offline: func(ctx context.Context, st store.Store, q *Query) (map[string]any, error) {
			if q.URL != "" {
				body := map[string]any{}
				rec, err := st.Get(ctx, CollectionBookmarks, q.URL)
				if err == nil {
					body["bookmark"] = rec
				} else if !errors.Is(err, store.ErrNotFound) {
					return nil, err
				}
				return body, nil
			}

			items, err := st.List(ctx, CollectionBookmarks)
			if err != nil {
				return nil, err
			}
			return map[string]any{"bookmarks": rawList(items)}, nil
		},
	}
}

// WatchEndpoint serves watch-state entries, keyed by lower-cased item URL.
// Offline reads answer a "url" query with one record, otherwise the full
// cached list paginated by offset/limit; every reconstructed entry carries
// the placeholder status. Successful writes are persisted through to the
// cache, except entries whose status is "unwatched".
func WatchEndpoint() Endpoint {
	key := itemStringKey("url", true)
	return Endpoint{
		Name:        "watch",
		Prefix:      "/api/watch",
		Collection:  CollectionWatch,
		ListField:   "items",
		SingleField: "item",
		Key:         key,
		Offline: func(ctx context.Context, st store.Store, q *Query) (map[string]any, error) {
			if q.URL != "" {
				body := map[string]any{}
				rec, err := st.Get(ctx, CollectionWatch, strings.ToLower(q.URL))
				if err == nil {
					item, perr := withStatus(rec, WatchPlaceholderStatus)
					if perr != nil {
						return nil, perr
					}
					body["item"] = item
				} else if !errors.Is(err, store.ErrNotFound) {
					return nil, err
				}
				return body, nil
			}

			items, err := st.List(ctx, CollectionWatch)
			if err != nil {
				return nil, err
			}
			begin := 0
			if q.Offset != nil {
				begin = *q.Offset
			}
			end := len(items)
			if q.Limit != nil {
				end = begin + *q.Limit
			}
			items = boundedSlice(items, begin, end)

			out := make([]json.RawMessage, 0, len(items))
			for _, it := range items {
				tagged, err := withStatus(it, WatchPlaceholderStatus)
				if err != nil {
					return nil, err
				}
				out = append(out, tagged)
			}
			return map[string]any{"items": out}, nil
		},
		WriteThrough: func(ctx context.Context, st store.Store, reqBody []byte) error {
			p, err := decodePayload(reqBody, "items", "item")
			if err != nil {
				return err
			}

			persist := func(item json.RawMessage) error {
				if itemStatus(item) == "unwatched" {
					return nil
				}
				k, err := key(item)
				if err != nil {
					return err
				}
				return st.Put(ctx, CollectionWatch, k, item)
			}

			switch p.kind {
			case payloadList:
				for _, item := range p.items {
					if err := persist(item); err != nil {
						return err
					}
				}
				return nil
			case payloadSingle:
				return persist(p.item)
			default:
				// Clients also send the entry as the whole body.
				if _, err := key(reqBody); err != nil {
					return nil
				}
				return persist(reqBody)
			}
		},
	}
}

// NotificationsEndpoint serves notifications, keyed by numeric id. Offline
// reads filter the cached list by the starred flag and paginate it.
func NotificationsEndpoint() Endpoint {
	return Endpoint{
		Name:        "notifications",
		Prefix:      "/api/notifications",
		Collection:  CollectionNotifications,
		ListField:   "notifications",
		SingleField: "notification",
		Key: func(item json.RawMessage) (string, error) {
			var probe struct {
				ID *json.Number `json:"id"`
			}
			if err := json.Unmarshal(item, &probe); err != nil {
				return "", err
			}
			if probe.ID == nil {
				return "", fmt.Errorf("notification has no id")
			}
			return probe.ID.String(), nil
		},
		Offline: func(ctx context.Context, st store.Store, q *Query) (map[string]any, error) {
			items, err := st.List(ctx, CollectionNotifications)
			if err != nil {
				return nil, err
			}
			if q.Starred != nil && *q.Starred {
				items = filterStarred(items)
			}

			// The web client has always paginated notifications as
			// list.slice(offset, limit), so limit is the end index, not a
			// count. Changing this silently would change what users see.
			begin := 0
			if q.Offset != nil {
				begin = *q.Offset
			}
			end := len(items)
			if q.Limit != nil {
				end = *q.Limit
			}
			items = boundedSlice(items, begin, end)

			return map[string]any{"notifications": rawList(items)}, nil
		},
	}
}

// DefaultEndpoints returns the four endpoint configurations in dispatch
// order.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		IdentityEndpoint(),
		BookmarksEndpoint(),
		WatchEndpoint(),
		NotificationsEndpoint(),
	}
}

// itemStringKey extracts a non-empty string field as the item's key,
// optionally lower-casing it.
func itemStringKey(field string, lower bool) func(json.RawMessage) (string, error) {
	return func(item json.RawMessage) (string, error) {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil {
			return "", err
		}
		s, ok := fields[field].(string)
		if !ok || s == "" {
			return "", fmt.Errorf("item has no %q field", field)
		}
		if lower {
			s = strings.ToLower(s)
		}
		return s, nil
	}
}

// withStatus returns item with its status field replaced.
func withStatus(item json.RawMessage, status string) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(item, &fields); err != nil {
		return nil, err
	}
	fields["status"] = status
	return json.Marshal(fields)
}

// itemStatus reads the status field of an item, empty when absent.
func itemStatus(item json.RawMessage) string {
	var probe struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(item, &probe)
	return probe.Status
}

// filterStarred keeps items whose starred field is true.
func filterStarred(items []json.RawMessage) []json.RawMessage {
	kept := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		var probe struct {
			Starred bool `json:"starred"`
		}
		if err := json.Unmarshal(item, &probe); err != nil {
			continue
		}
		if probe.Starred {
			kept = append(kept, item)
		}
	}
	return kept
}

// boundedSlice clamps begin and end to the list the way Array.slice does
// for non-negative arguments.
func boundedSlice(items []json.RawMessage, begin, end int) []json.RawMessage {
	if begin > len(items) {
		begin = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	if end < begin {
		end = begin
	}
	return items[begin:end]
}

// rawList keeps empty lists encoding as [] instead of null.
func rawList(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}
