package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"emotag/internal/domain"
	"emotag/internal/emotion"
	"emotag/internal/markup"
)

var (
	ErrVoiceRequired = errors.New("voice_id is required")
	ErrTextRequired  = errors.New("text is required")
)

// VoiceLookup resolves a voice id to a profile.
type VoiceLookup interface {
	Lookup(ctx context.Context, voiceID string) (domain.VoiceProfile, error)
}

// Planner turns marked-up text into a backend synthesis plan.
type Planner struct {
	voices VoiceLookup
	parser *markup.Parser
}

// NewPlanner builds a planner. A nil voices skips voice validation.
func NewPlanner(voices VoiceLookup, parser *markup.Parser) *Planner {
	if parser == nil {
		parser = markup.NewParser(markup.Options{})
	}
	return &Planner{voices: voices, parser: parser}
}

func (p *Planner) Parser() *markup.Parser {
	return p.parser
}

func (p *Planner) Plan(ctx context.Context, req domain.SayRequest) (domain.SynthesisPlan, markup.Result, error) {
	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		return domain.SynthesisPlan{}, markup.Result{}, ErrVoiceRequired
	}
	if strings.TrimSpace(req.Text) == "" {
		return domain.SynthesisPlan{}, markup.Result{}, ErrTextRequired
	}
	if p.voices != nil {
		if _, err := p.voices.Lookup(ctx, voiceID); err != nil {
			return domain.SynthesisPlan{}, markup.Result{}, fmt.Errorf("voice %s: %w", voiceID, err)
		}
	}

	res := p.parser.Parse(req.Text)
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	plan := domain.SynthesisPlan{
		RequestID:       requestID,
		VoiceID:         voiceID,
		Segments:        make([]domain.PlanSegment, 0, len(res.Segments)),
		PlainText:       res.PlainText,
		Speed:           req.Speed,
		OutputFormat:    req.OutputFormat,
		EmotionsApplied: peak(res.Segments).Percentages(),
	}
	for _, seg := range res.Segments {
		plan.Segments = append(plan.Segments, domain.PlanSegment{
			Text:   seg.Text,
			Vector: seg.Vector.Slice(),
		})
	}
	return plan, res, nil
}

// peak is the per-kind maximum over all segments.
func peak(segments []markup.Segment) emotion.Vector {
	var out emotion.Vector
	for _, seg := range segments {
		for i, x := range seg.Vector {
			if x > out[i] {
				out[i] = x
			}
		}
	}
	return out
}
