package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"emotag/internal/domain"
	"emotag/internal/synth"
)

type stubSynth struct {
	got domain.SayRequest
	err error
}

func (s *stubSynth) Synthesize(ctx context.Context, req domain.SayRequest) (synth.Outcome, error) {
	s.got = req
	if s.err != nil {
		return synth.Outcome{}, s.err
	}
	plan, res, err := synth.NewPlanner(nil, nil).Plan(ctx, req)
	return synth.Outcome{Plan: plan, Parse: res}, err
}

func newTestHub(s Synthesizer) *Hub {
	return NewHub(HubConfig{TopicPrefix: "emotag"}, s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decodeEnvelope(t *testing.T, body []byte) domain.PlanEnvelope {
	t.Helper()
	var env domain.PlanEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestProcessSay(t *testing.T) {
	stub := &stubSynth{}
	h := newTestHub(stub)

	topic, body, ok := h.process(context.Background(), "emotag/terminal/t1/say",
		[]byte(`{"request_id":"r1","voice_id":"voice_a","text":"[Happy:80]Hi [Nope:3]there"}`))
	if !ok {
		t.Fatalf("process should answer")
	}
	if topic != "emotag/terminal/t1/plan/r1" {
		t.Fatalf("topic=%s", topic)
	}
	env := decodeEnvelope(t, body)
	if !env.OK || env.TerminalID != "t1" || env.RequestID != "r1" {
		t.Fatalf("envelope=%+v", env)
	}
	if env.Plan == nil || env.Plan.PlainText != "Hi there" || len(env.Plan.Segments) != 2 {
		t.Fatalf("plan=%+v", env.Plan)
	}
	if len(env.Diagnostics) != 1 || env.Diagnostics[0].Code != "unknown_emotion" {
		t.Fatalf("diagnostics=%+v", env.Diagnostics)
	}
	if got := h.OnlineTerminals(); len(got) != 1 || got[0] != "t1" {
		t.Fatalf("online=%v", got)
	}
}

func TestProcessAssignsRequestID(t *testing.T) {
	stub := &stubSynth{}
	h := newTestHub(stub)

	topic, body, ok := h.process(context.Background(), "emotag/terminal/t1/say", []byte(`{"voice_id":"v","text":"hello"}`))
	if !ok {
		t.Fatalf("process should answer")
	}
	env := decodeEnvelope(t, body)
	if env.RequestID == "" || stub.got.RequestID != env.RequestID {
		t.Fatalf("request id=%q synth saw %q", env.RequestID, stub.got.RequestID)
	}
	if topic != TopicPlan("emotag", "t1", env.RequestID) {
		t.Fatalf("topic=%s", topic)
	}
}

func TestProcessReportsErrors(t *testing.T) {
	h := newTestHub(&stubSynth{err: errors.New("voice voice_x: voice not found")})

	_, body, ok := h.process(context.Background(), "emotag/terminal/t1/say", []byte(`{"voice_id":"voice_x","text":"hi"}`))
	if !ok {
		t.Fatalf("process should answer")
	}
	env := decodeEnvelope(t, body)
	if env.OK || env.Error == "" || env.Plan != nil {
		t.Fatalf("envelope=%+v", env)
	}

	_, body, ok = h.process(context.Background(), "emotag/terminal/t1/say", []byte(`not json`))
	if !ok {
		t.Fatalf("bad payload should still be answered")
	}
	if env := decodeEnvelope(t, body); env.OK || env.Error == "" {
		t.Fatalf("envelope=%+v", env)
	}
}

func TestProcessRejectsForeignTopic(t *testing.T) {
	h := newTestHub(&stubSynth{})
	for _, topic := range []string{"other/terminal/t1/say", "emotag/terminal/t1/online", "emotag/terminal/t1/say/extra"} {
		if _, _, ok := h.process(context.Background(), topic, []byte(`{}`)); ok {
			t.Fatalf("topic %s should be skipped", topic)
		}
	}
}

func TestProcessRejectsTopicBreakingRequestID(t *testing.T) {
	for _, id := range []string{"a/b", "r+1", "#"} {
		stub := &stubSynth{}
		h := newTestHub(stub)

		payload, _ := json.Marshal(domain.SayRequest{RequestID: id, VoiceID: "v", Text: "hi"})
		topic, body, ok := h.process(context.Background(), "emotag/terminal/t1/say", payload)
		if !ok {
			t.Fatalf("request_id %q should still be answered", id)
		}
		env := decodeEnvelope(t, body)
		if env.OK || env.Error == "" || env.Plan != nil {
			t.Fatalf("request_id %q envelope=%+v, want error", id, env)
		}
		if env.RequestID == id || !validRequestID(env.RequestID) {
			t.Fatalf("reply request_id=%q, want a fresh id", env.RequestID)
		}
		if topic != TopicPlan("emotag", "t1", env.RequestID) {
			t.Fatalf("topic=%s", topic)
		}
		if stub.got.Text != "" {
			t.Fatalf("synthesizer should not run for request_id %q", id)
		}
	}
}
