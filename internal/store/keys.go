package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Well-known keys of the flat namespace shared with the extension.
const (
	KeyIsConnected      = "isConnected"
	KeyCurrentPostData  = "currentPostData"
	KeyRelatedPostsData = "relatedPostsData"
	KeyModResponse      = "modResponse"
	KeyLastProcessedURL = "lastProcessedUrl"

	// ProcessedPrefix namespaces the session-scoped idempotency entries.
	ProcessedPrefix = "processed_"
)

// ProcessedKey returns the idempotency key for a topic id.
func ProcessedKey(topicID int64) string {
	return ProcessedPrefix + strconv.FormatInt(topicID, 10)
}

// ResultKeys are the keys a view needs before it can render a complete
// result.
var ResultKeys = []string{KeyCurrentPostData, KeyRelatedPostsData, KeyModResponse}

// GetJSON reads key and unmarshals it into v. Returns false if absent.
func (s *Store) GetJSON(key string, v any) (bool, error) {
	data, ok, err := s.Get(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals v and stores it under key.
func (s *Store) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return s.Set(key, data)
}

// MarshalMulti builds a SetMulti payload from JSON-marshalable values.
func MarshalMulti(values map[string]any) (map[string][]byte, error) {
	out := make(map[string][]byte, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

// WaitFor polls until all keys are simultaneously present, then returns.
// This is the fallback for contexts that cannot receive push
// notifications; it is bounded by ctx, not open-ended.
func (s *Store) WaitFor(ctx context.Context, interval time.Duration, keys ...string) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		present := true
		for _, key := range keys {
			_, ok, err := s.Get(key)
			if err != nil {
				return err
			}
			if !ok {
				present = false
				break
			}
		}
		if present {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
