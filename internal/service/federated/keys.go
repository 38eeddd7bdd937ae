package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rakutentech/jwk-go/jwk"

	"uk.co.dudmesh.bloggr/internal/model"
)

type keySet struct {
	Keys []json.RawMessage `json:"keys"`
}

func (s *keySet) parse() (map[string]interface{}, error) {
	keys := make(map[string]interface{}, len(s.Keys))
	for _, raw := range s.Keys {
		var header struct {
			KeyID string `json:"kid"`
			Use   string `json:"use"`
		}
		if err := json.Unmarshal(raw, &header); err != nil {
			return nil, fmt.Errorf("parsing key header: %w", err)
		}
		if header.Use != "" && header.Use != "sig" {
			continue
		}

		keySpec, err := jwk.Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parsing key %q: %w", header.KeyID, err)
		}
		keys[header.KeyID] = keySpec.Key
	}
	return keys, nil
}

// keyCache holds the provider's signing keys by key id. Unknown ids trigger a
// refetch so rotated keys are picked up.
type keyCache struct {
	mu    sync.Mutex
	keys  map[string]interface{}
	fetch func(ctx context.Context) (map[string]interface{}, error)
}

func newKeyCache(fetch func(ctx context.Context) (map[string]interface{}, error)) *keyCache {
	return &keyCache{keys: map[string]interface{}{}, fetch: fetch}
}

func (c *keyCache) Get(ctx context.Context, keyID string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key, ok := c.keys[keyID]; ok {
		return key, nil
	}

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing keys: %w", err)
	}
	c.keys = keys

	if key, ok := c.keys[keyID]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrorUnknownKey, keyID)
}
