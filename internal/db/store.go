package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"emotag/internal/domain"
)

var (
	ErrVoiceNotFound = errors.New("voice not found")
	ErrVoiceExists   = errors.New("voice name already exists")
)

type Store struct {
	pool *pgxpool.Pool
}

type NewVoiceProfile struct {
	Name        string
	Description string
	Gender      string
	SourceMedia string
	Metadata    map[string]any
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS voice_profiles (
			voice_id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			gender TEXT,
			source_media TEXT,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS synthesis_plans (
			request_id TEXT PRIMARY KEY,
			voice_id TEXT NOT NULL REFERENCES voice_profiles(voice_id) ON DELETE CASCADE,
			plain_text TEXT NOT NULL,
			segments JSONB NOT NULL,
			emotions_applied JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_synthesis_plans_voice_created ON synthesis_plans(voice_id, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateVoiceProfile(ctx context.Context, in NewVoiceProfile) (domain.VoiceProfile, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.VoiceProfile{}, fmt.Errorf("voice name is required")
	}
	voiceID := "voice_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return domain.VoiceProfile{}, fmt.Errorf("encode metadata: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO voice_profiles(voice_id, name, description, gender, source_media, metadata)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (name) DO NOTHING
	`, voiceID, name, nullIfEmpty(in.Description), nullIfEmpty(in.Gender), nullIfEmpty(in.SourceMedia), string(metaJSON))
	if err != nil {
		return domain.VoiceProfile{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.VoiceProfile{}, fmt.Errorf("%w: %s", ErrVoiceExists, name)
	}
	return s.GetVoiceProfile(ctx, voiceID)
}

func (s *Store) GetVoiceProfile(ctx context.Context, voiceID string) (domain.VoiceProfile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT voice_id, name, description, gender, source_media, metadata, created_at
		FROM voice_profiles
		WHERE voice_id=$1
	`, voiceID)
	out, err := scanVoiceProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.VoiceProfile{}, ErrVoiceNotFound
	}
	return out, err
}

func (s *Store) ListVoiceProfiles(ctx context.Context) ([]domain.VoiceProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT voice_id, name, description, gender, source_media, metadata, created_at
		FROM voice_profiles
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.VoiceProfile, 0)
	for rows.Next() {
		item, err := scanVoiceProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) DeleteVoiceProfile(ctx context.Context, voiceID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM voice_profiles WHERE voice_id=$1`, voiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVoiceNotFound
	}
	return nil
}

func (s *Store) SavePlan(ctx context.Context, plan domain.SynthesisPlan) error {
	segJSON, err := json.Marshal(plan.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	appliedJSON, err := json.Marshal(plan.EmotionsApplied)
	if err != nil {
		return fmt.Errorf("encode emotions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO synthesis_plans(request_id, voice_id, plain_text, segments, emotions_applied)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)
		ON CONFLICT (request_id) DO NOTHING
	`, plan.RequestID, plan.VoiceID, plan.PlainText, string(segJSON), string(appliedJSON))
	return err
}

func scanVoiceProfile(row pgx.Row) (domain.VoiceProfile, error) {
	var (
		out         domain.VoiceProfile
		description *string
		gender      *string
		sourceMedia *string
		metaRaw     []byte
		createdAt   time.Time
	)
	if err := row.Scan(&out.VoiceID, &out.Name, &description, &gender, &sourceMedia, &metaRaw, &createdAt); err != nil {
		return domain.VoiceProfile{}, err
	}
	out.Description = deref(description)
	out.Gender = deref(gender)
	out.SourceMedia = deref(sourceMedia)
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &out.Metadata); err != nil {
			return domain.VoiceProfile{}, err
		}
	}
	out.CreatedAt = createdAt.UTC()
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
