package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/troyyang/ocr-compare/internal/domain"
)

// ParseCache stores ParseOutput values keyed by file digest and engine set.
// A nil *ParseCache, or one without a client, is a permanent miss.
type ParseCache struct {
	client Client
	ttl    time.Duration
}

// NewParseCache wraps client.
func NewParseCache(client Client, ttl time.Duration) *ParseCache {
	return &ParseCache{client: client, ttl: ttl}
}

// Enabled reports whether lookups can hit.
func (p *ParseCache) Enabled() bool {
	return p != nil && p.client != nil
}

// ParseKey builds the key for one file content and engine list. Engine order
// is part of the key since it decides tie-breaks.
func ParseKey(digest string, engines []string) string {
	return CacheKey("parse", digest, strings.Join(engines, ","))
}

// FileDigest returns the hex sha256 of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached output. Undecodable entries count as misses.
func (p *ParseCache) Get(ctx context.Context, key string) (*domain.ParseOutput, bool) {
	if !p.Enabled() {
		return nil, false
	}
	data, err := p.client.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var out domain.ParseOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return &out, true
}

// Put stores out under key.
func (p *ParseCache) Put(ctx context.Context, key string, out *domain.ParseOutput) error {
	if !p.Enabled() || out == nil {
		return nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal parse output: %w", err)
	}
	return p.client.Set(ctx, key, data, p.ttl)
}
