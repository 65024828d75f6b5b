package synth

import (
	"context"
	"log/slog"
	"time"

	"emotag/internal/domain"
	"emotag/internal/markup"
)

// PlanRecorder persists plans for auditing.
type PlanRecorder interface {
	SavePlan(ctx context.Context, plan domain.SynthesisPlan) error
}

type Outcome struct {
	Plan   domain.SynthesisPlan
	Parse  markup.Result
	Result *domain.SynthesisResult
}

// Service plans a request, records it and submits it to the backend when one is configured.
type Service struct {
	planner  *Planner
	recorder PlanRecorder
	client   *Client
	logger   *slog.Logger
}

func NewService(planner *Planner, recorder PlanRecorder, client *Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{planner: planner, recorder: recorder, client: client, logger: logger}
}

func (s *Service) Planner() *Planner {
	return s.planner
}

func (s *Service) Synthesize(ctx context.Context, req domain.SayRequest) (Outcome, error) {
	started := time.Now()
	plan, res, err := s.planner.Plan(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Plan: plan, Parse: res}

	if s.recorder != nil {
		if err := s.recorder.SavePlan(ctx, plan); err != nil {
			s.logger.Warn("persist synthesis plan failed", "request_id", plan.RequestID, "error", err)
		}
	}

	if s.client.Enabled() {
		result, err := s.client.Synthesize(ctx, plan)
		if err != nil {
			return out, err
		}
		out.Result = &result
	}

	s.logger.Info("synthesis planned",
		"request_id", plan.RequestID,
		"voice_id", plan.VoiceID,
		"segments", len(plan.Segments),
		"diagnostics", len(res.Diagnostics),
		"submitted", out.Result != nil,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return out, nil
}
