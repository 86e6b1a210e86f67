// Package users resolves participant ids to display profiles. Resolve
// is total: any miss or lookup failure yields a deterministic fallback
// profile, so callers never branch on an error.
package users

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
)

const cachePrefix = "profile:"

type Resolver struct {
	store store.DirectoryStore
	cache *redis.Client // optional
	ttl   time.Duration
	log   *zap.SugaredLogger
}

func NewResolver(s store.DirectoryStore, log *zap.SugaredLogger) *Resolver {
	return &Resolver{store: s, ttl: 5 * time.Minute, log: log}
}

// WithCache adds a redis read-through cache. Cache failures are
// absorbed; redis being down only costs extra store reads.
func (r *Resolver) WithCache(c *redis.Client, ttl time.Duration) *Resolver {
	r.cache = c
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

// Resolve looks up a profile and never fails.
func (r *Resolver) Resolve(ctx context.Context, id string) models.Profile {
	if id == "" {
		return Fallback(id)
	}
	if p, ok := r.cached(ctx, id); ok {
		return p
	}
	raw, err := r.store.GetProfile(ctx, id)
	if err != nil {
		if err != store.ErrNotFound {
			r.log.Warnw("profile lookup failed, using fallback", "user_id", id, "err", err)
		}
		return Fallback(id)
	}
	p := normalize(id, *raw)
	r.cachePut(ctx, id, p)
	return p
}

// ListUsers returns every known profile except excludeID, each run
// through the same normalization as Resolve.
func (r *Resolver) ListUsers(ctx context.Context, excludeID string) []models.Profile {
	raw, err := r.store.ListProfiles(ctx)
	if err != nil {
		r.log.Warnw("profile listing failed", "err", err)
		return nil
	}
	out := make([]models.Profile, 0, len(raw))
	for _, p := range raw {
		if p.ID == excludeID {
			continue
		}
		out = append(out, normalize(p.ID, p))
	}
	return out
}

func (r *Resolver) cached(ctx context.Context, id string) (models.Profile, bool) {
	if r.cache == nil {
		return models.Profile{}, false
	}
	b, err := r.cache.Get(ctx, cachePrefix+id).Bytes()
	if err != nil {
		return models.Profile{}, false
	}
	var p models.Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return models.Profile{}, false
	}
	return p, true
}

func (r *Resolver) cachePut(ctx context.Context, id string, p models.Profile) {
	if r.cache == nil {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cachePrefix+id, b, r.ttl).Err(); err != nil {
		r.log.Debugw("profile cache write failed", "user_id", id, "err", err)
	}
}

// normalize coalesces the name variants legacy user records carry into
// a single display name.
func normalize(id string, p models.Profile) models.Profile {
	name := firstNonEmpty(p.DisplayName, p.Name, p.FullName, p.Username, emailLocalPart(p.Email))
	if name == "" {
		name = fallbackName(id)
	}
	email := p.Email
	if email == "" {
		email = "No email"
	}
	role := p.Role
	if role == "" {
		role = "student"
	}
	return models.Profile{
		ID:          id,
		DisplayName: name,
		Email:       email,
		Role:        role,
		AvatarURL:   p.AvatarURL,
	}
}

// Fallback is the deterministic profile for an id with no backing record.
func Fallback(id string) models.Profile {
	return models.Profile{
		ID:          id,
		DisplayName: fallbackName(id),
		Email:       "No email",
		Role:        "user",
	}
}

func fallbackName(id string) string {
	short := id
	if len(short) > 4 {
		short = short[:4]
	}
	return "User " + short
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
