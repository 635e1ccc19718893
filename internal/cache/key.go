package cache

import (
	"errors"
	"fmt"
	"strings"
)

const keySeparator = ":"

var ErrInvalidKey = errors.New("invalid cache key")

// Key joins the parts into a namespaced key, e.g. Key("settings", "demo") == "settings:demo"
func Key(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

// KeyPrefix returns a prefix matching every key built from parts followed by at least one more part.
//
// Use this for scoped invalidation: KeyPrefix("tenant", "demo") matches "tenant:demo:settings"
// but not "tenant:demo2:settings".
func KeyPrefix(parts ...string) string {
	return Key(parts...) + keySeparator
}

// ValidateKey rejects empty keys and keys with empty segments, like those built from a missing id
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}

	for _, part := range strings.Split(key, keySeparator) {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidKey, key)
		}
	}

	return nil
}
