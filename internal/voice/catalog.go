package voice

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"emotag/internal/domain"
)

// Source is the authoritative voice-profile store.
type Source interface {
	GetVoiceProfile(ctx context.Context, voiceID string) (domain.VoiceProfile, error)
	ListVoiceProfiles(ctx context.Context) ([]domain.VoiceProfile, error)
}

type entry struct {
	profile  domain.VoiceProfile
	cachedAt time.Time
}

// Catalog caches voice profiles in front of a Source.
type Catalog struct {
	mu     sync.RWMutex
	data   map[string]entry
	ttl    time.Duration
	source Source
	now    func() time.Time
}

func NewCatalog(source Source, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Catalog{
		data:   make(map[string]entry),
		ttl:    ttl,
		source: source,
		now:    time.Now,
	}
}

// Enabled reports whether a backing store is configured.
func (c *Catalog) Enabled() bool {
	return c != nil && c.source != nil
}

func (c *Catalog) Put(profile domain.VoiceProfile) {
	id := strings.TrimSpace(profile.VoiceID)
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[id] = entry{profile: profile, cachedAt: c.now()}
}

func (c *Catalog) Invalidate(voiceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, voiceID)
}

func (c *Catalog) cached(voiceID string) (domain.VoiceProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[voiceID]
	if !ok || c.isExpired(e) {
		return domain.VoiceProfile{}, false
	}
	return e.profile, true
}

// Lookup returns a cached profile or loads it from the source.
func (c *Catalog) Lookup(ctx context.Context, voiceID string) (domain.VoiceProfile, error) {
	voiceID = strings.TrimSpace(voiceID)
	if p, ok := c.cached(voiceID); ok {
		return p, nil
	}
	if c.source == nil {
		return domain.VoiceProfile{}, ErrNoSource
	}
	p, err := c.source.GetVoiceProfile(ctx, voiceID)
	if err != nil {
		return domain.VoiceProfile{}, err
	}
	c.Put(p)
	return p, nil
}

// List refreshes the cache from the source and returns profiles ordered by creation.
func (c *Catalog) List(ctx context.Context) ([]domain.VoiceProfile, error) {
	if c.source == nil {
		return nil, ErrNoSource
	}
	profiles, err := c.source.ListVoiceProfiles(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now()
	c.mu.Lock()
	c.data = make(map[string]entry, len(profiles))
	for _, p := range profiles {
		c.data[p.VoiceID] = entry{profile: p, cachedAt: now}
	}
	c.mu.Unlock()

	out := append([]domain.VoiceProfile{}, profiles...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (c *Catalog) isExpired(e entry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(e.cachedAt) > c.ttl
}
