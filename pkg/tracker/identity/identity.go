// Package identity turns user-supplied wallet references (addresses,
// usernames, profile URLs) into canonical lowercase addresses, and addresses
// back into display names.
package identity

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/cache"
)

// PageFetcher fetches public profile HTML.
type PageFetcher interface {
	ByUsername(ctx context.Context, username string) (string, error)
	ByAddress(ctx context.Context, address string) (string, error)
}

var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"proxyWallet":"(0x[a-f0-9]{40})"`),
	regexp.MustCompile(`(?i)"address":"(0x[a-f0-9]{40})"`),
	regexp.MustCompile(`(?i)wallet["|']:\s*["|'](0x[a-f0-9]{40})["|']`),
}

var usernamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"username":"([^"]+)"`),
	regexp.MustCompile(`(?i)"name":"([^"]+)"`),
	regexp.MustCompile(`(?i)<title>([^<|]+)`),
}

var inputPrefixes = []string{
	"https://polymarket.com/@",
	"https://polymarket.com/profile/",
}

// Resolver resolves wallet identities. Safe for concurrent use.
type Resolver struct {
	pages     PageFetcher
	usernames cache.Cache[string]
	logger    *zap.Logger

	lookupTimeout  time.Duration
	reverseTimeout time.Duration
	usernameTTL    time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithUsernameCache replaces the in-memory username cache.
func WithUsernameCache(c cache.Cache[string], ttl time.Duration) Option {
	return func(r *Resolver) {
		if c != nil {
			r.usernames = c
		}
		if ttl > 0 {
			r.usernameTTL = ttl
		}
	}
}

// WithTimeouts sets the per-call timeouts for profile lookups.
func WithTimeouts(lookup, reverse time.Duration) Option {
	return func(r *Resolver) {
		r.lookupTimeout = lookup
		r.reverseTimeout = reverse
	}
}

// NewResolver creates a resolver backed by pages.
func NewResolver(pages PageFetcher, opts ...Option) *Resolver {
	r := &Resolver{
		pages:          pages,
		usernames:      cache.NewTTL[string](),
		logger:         zap.NewNop(),
		lookupTimeout:  8 * time.Second,
		reverseTimeout: 5 * time.Second,
		usernameTTL:    time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsAddress reports whether s is a 0x-prefixed 40-hex-digit address.
func IsAddress(s string) bool {
	return len(s) == 42 && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) && common.IsHexAddress(s)
}

// Normalize lowercases an address.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Resolve returns the canonical address for input. Addresses resolve
// without network access; anything else is looked up on the profile page.
// Failures are logged and reported as ("", false).
func (r *Resolver) Resolve(ctx context.Context, input string) (string, bool) {
	clean := strings.TrimSpace(input)
	if IsAddress(clean) {
		return Normalize(clean), true
	}

	slug := clean
	for _, p := range inputPrefixes {
		slug = strings.Replace(slug, p, "", 1)
	}
	slug = strings.TrimPrefix(slug, "@")
	if i := strings.IndexByte(slug, '?'); i >= 0 {
		slug = slug[:i]
	}
	slug = strings.Trim(slug, "/ ")
	if IsAddress(slug) {
		return Normalize(slug), true
	}
	if slug == "" {
		return "", false
	}

	lctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	html, err := r.pages.ByUsername(lctx, slug)
	if err != nil {
		r.logger.Warn("profile lookup failed", zap.String("username", slug), zap.Error(err))
		return "", false
	}
	if addr, ok := firstMatch(html, addressPatterns, nil); ok {
		r.logger.Debug("identity resolved", zap.String("username", slug), zap.String("wallet", addr))
		return Normalize(addr), true
	}
	r.logger.Info("no wallet address on profile page", zap.String("username", slug))
	return "", false
}

// Username returns the display name for address, cached for an hour.
func (r *Resolver) Username(ctx context.Context, address string) (string, bool) {
	address = Normalize(address)
	if name, ok, err := r.usernames.Get(ctx, address); err == nil && ok {
		return name, true
	}

	lctx, cancel := context.WithTimeout(ctx, r.reverseTimeout)
	defer cancel()

	html, err := r.pages.ByAddress(lctx, address)
	if err != nil {
		r.logger.Debug("reverse lookup failed", zap.String("wallet", address), zap.Error(err))
		return "", false
	}
	name, ok := firstMatch(html, usernamePatterns, func(s string) bool {
		return !strings.Contains(s, "Polymarket")
	})
	if !ok {
		return "", false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if err := r.usernames.Set(ctx, address, name, r.usernameTTL); err != nil {
		r.logger.Debug("username cache write failed", zap.Error(err))
	}
	return name, true
}

// Forget drops the cached display name for address.
func (r *Resolver) Forget(ctx context.Context, address string) {
	_ = r.usernames.Delete(ctx, Normalize(address))
}

// firstMatch tries each pattern in order and returns the first capture that
// passes accept. Only the first match of each pattern is considered.
func firstMatch(s string, patterns []*regexp.Regexp, accept func(string) bool) (string, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(s)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		if accept != nil && !accept(m[1]) {
			continue
		}
		return m[1], true
	}
	return "", false
}
