package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"emotag/internal/domain"
)

type fakeSource struct {
	profiles map[string]domain.VoiceProfile
	gets     int
}

var errMissing = errors.New("missing")

func (f *fakeSource) GetVoiceProfile(_ context.Context, voiceID string) (domain.VoiceProfile, error) {
	f.gets++
	p, ok := f.profiles[voiceID]
	if !ok {
		return domain.VoiceProfile{}, errMissing
	}
	return p, nil
}

func (f *fakeSource) ListVoiceProfiles(_ context.Context) ([]domain.VoiceProfile, error) {
	out := make([]domain.VoiceProfile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func TestLookupCachesProfile(t *testing.T) {
	src := &fakeSource{profiles: map[string]domain.VoiceProfile{"voice_a": {VoiceID: "voice_a", Name: "A"}}}
	c := NewCatalog(src, time.Minute)

	for i := 0; i < 3; i++ {
		p, err := c.Lookup(context.Background(), "voice_a")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if p.Name != "A" {
			t.Fatalf("name=%s, want A", p.Name)
		}
	}
	if src.gets != 1 {
		t.Fatalf("source gets=%d, want 1", src.gets)
	}
}

func TestLookupExpires(t *testing.T) {
	src := &fakeSource{profiles: map[string]domain.VoiceProfile{"voice_a": {VoiceID: "voice_a"}}}
	c := NewCatalog(src, time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.Lookup(context.Background(), "voice_a"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := c.Lookup(context.Background(), "voice_a"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if src.gets != 2 {
		t.Fatalf("source gets=%d, want 2 after expiry", src.gets)
	}
}

func TestLookupMissingAndInvalidate(t *testing.T) {
	src := &fakeSource{profiles: map[string]domain.VoiceProfile{"voice_a": {VoiceID: "voice_a"}}}
	c := NewCatalog(src, time.Minute)

	if _, err := c.Lookup(context.Background(), "voice_b"); !errors.Is(err, errMissing) {
		t.Fatalf("err=%v, want errMissing", err)
	}
	if _, err := c.Lookup(context.Background(), "voice_a"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	c.Invalidate("voice_a")
	delete(src.profiles, "voice_a")
	if _, err := c.Lookup(context.Background(), "voice_a"); !errors.Is(err, errMissing) {
		t.Fatalf("err=%v after invalidate, want errMissing", err)
	}
}

func TestCatalogWithoutSource(t *testing.T) {
	c := NewCatalog(nil, 0)
	if c.Enabled() {
		t.Fatalf("catalog without source should not be enabled")
	}
	if _, err := c.Lookup(context.Background(), "voice_a"); !errors.Is(err, ErrNoSource) {
		t.Fatalf("err=%v, want ErrNoSource", err)
	}
	c.Put(domain.VoiceProfile{VoiceID: "voice_a", Name: "seeded"})
	p, err := c.Lookup(context.Background(), "voice_a")
	if err != nil || p.Name != "seeded" {
		t.Fatalf("seeded lookup = (%+v,%v)", p, err)
	}
}

func TestListOrdersByCreation(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{profiles: map[string]domain.VoiceProfile{
		"voice_b": {VoiceID: "voice_b", CreatedAt: base.Add(time.Hour)},
		"voice_a": {VoiceID: "voice_a", CreatedAt: base},
	}}
	c := NewCatalog(src, time.Minute)
	got, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].VoiceID != "voice_a" || got[1].VoiceID != "voice_b" {
		t.Fatalf("list=%+v, want voice_a then voice_b", got)
	}
	if _, err := c.Lookup(context.Background(), "voice_b"); err != nil || src.gets != 0 {
		t.Fatalf("lookup after list should hit cache, gets=%d err=%v", src.gets, err)
	}
}
