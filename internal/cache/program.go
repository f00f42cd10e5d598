package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/Alligator/jqawk/vm"
)

// ProgramCache stores and fetches compiled rule programs, keyed by the
// sha256 of their source text. It does not compile anything itself;
// callers compile on a miss and Put only successfully compiled rules.
type ProgramCache struct {
	backend Cache
}

// NewProgramCache wraps a Cache backend (MemoryCache or RedisCache).
func NewProgramCache(backend Cache) *ProgramCache {
	return &ProgramCache{backend: backend}
}

// Key returns the cache key for a given program source.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached rules for source, or ErrMiss.
func (p *ProgramCache) Get(ctx context.Context, source string) ([]vm.Rule, error) {
	raw, err := p.backend.Get(ctx, Key(source))
	if err != nil {
		return nil, err
	}
	var rules []vm.Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Put stores rules for source, using the backend's default TTL.
func (p *ProgramCache) Put(ctx context.Context, source string, rules []vm.Rule) error {
	raw, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	return p.backend.Set(ctx, Key(source), raw, 0)
}
