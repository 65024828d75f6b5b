package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"emotag/internal/db"
	"emotag/internal/domain"
	"emotag/internal/emotion"
	"emotag/internal/markup"
	"emotag/internal/synth"
	"emotag/internal/voice"
)

// VoiceStore is the writable side of the voice catalog.
type VoiceStore interface {
	CreateVoiceProfile(ctx context.Context, in db.NewVoiceProfile) (domain.VoiceProfile, error)
	DeleteVoiceProfile(ctx context.Context, voiceID string) error
}

// TerminalTracker reports terminals seen by the MQTT hub.
type TerminalTracker interface {
	OnlineTerminals() []string
}

type Deps struct {
	Parser         *markup.Parser
	Service        *synth.Service
	Voices         *voice.Catalog
	Store          VoiceStore
	Terminals      TerminalTracker
	MaxBodyBytes   int64
	StreamMaxFrame int64
	Logger         *slog.Logger
}

type server struct {
	Deps
	upgrader websocket.Upgrader
}

type textRequest struct {
	Text string `json:"text"`
}

type directiveRequest struct {
	Body string `json:"body"`
}

type mergeRequest struct {
	Vectors [][]float64 `json:"vectors"`
	Weights []float64   `json:"weights,omitempty"`
}

type vectorRequest struct {
	Vector []float64 `json:"vector"`
}

type describeRequest struct {
	Description string   `json:"description"`
	Intensity   *float64 `json:"intensity,omitempty"`
}

type createVoiceRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Gender      string         `json:"gender,omitempty"`
	SourceMedia string         `json:"source_media,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type synthesizeResponse struct {
	RequestID       string                  `json:"request_id"`
	Plan            domain.SynthesisPlan    `json:"plan"`
	Result          *domain.SynthesisResult `json:"result,omitempty"`
	EmotionsApplied map[string]int          `json:"emotions_applied"`
	Diagnostics     []domain.DiagnosticView `json:"diagnostics,omitempty"`
}

const defaultDescribeIntensity = 0.5

func NewRouter(d Deps) http.Handler {
	if d.Parser == nil {
		d.Parser = markup.NewParser(markup.Options{})
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 65536
	}
	if d.StreamMaxFrame <= 0 {
		d.StreamMaxFrame = 65536
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Voices == nil {
		d.Voices = voice.NewCatalog(nil, 0)
	}
	if d.Service == nil {
		d.Service = synth.NewService(synth.NewPlanner(nil, d.Parser), nil, nil, d.Logger)
	}
	s := &server{
		Deps: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Get("/v1/emotion/kinds", s.kinds)
	r.Post("/v1/emotion/merge", s.merge)
	r.Post("/v1/emotion/normalize", s.normalize)
	r.Post("/v1/emotion/describe", s.describe)
	r.Post("/v1/markup/parse", s.parse)
	r.Post("/v1/markup/vectors", s.vectors)
	r.Post("/v1/markup/directive", s.directive)
	r.Get("/v1/markup/stream", s.stream)
	r.Route("/v1/voices", func(r chi.Router) {
		r.Get("/", s.listVoices)
		r.Post("/", s.createVoice)
		r.Get("/{voiceID}", s.getVoice)
		r.Delete("/{voiceID}", s.deleteVoice)
	})
	r.Post("/v1/synthesize", s.synthesize)
	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"ok":        true,
		"adjacency": s.Parser.Options().Adjacency,
		"store":     s.Voices.Enabled(),
	}
	if s.Terminals != nil {
		body["terminals"] = s.Terminals.OnlineTerminals()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *server) kinds(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, emotion.NumKinds)
	for _, k := range emotion.Kinds() {
		names = append(names, k.String())
	}
	aliases := make(map[string]string)
	for alias, k := range emotion.Aliases() {
		aliases[alias] = k.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"kinds": names, "aliases": aliases})
}

func (s *server) parse(w http.ResponseWriter, req *http.Request) {
	var in textRequest
	if err := decodeJSONBody(req, s.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	res := s.Parser.Parse(in.Text)
	s.warnDiagnostics("/v1/markup/parse", res.Diagnostics)
	writeJSON(w, http.StatusOK, synth.ParseView(in.Text, res))
}

func (s *server) vectors(w http.ResponseWriter, req *http.Request) {
	var in textRequest
	if err := decodeJSONBody(req, s.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	res := s.Parser.Parse(in.Text)
	s.warnDiagnostics("/v1/markup/vectors", res.Diagnostics)
	spans := make([]domain.VectorSpan, 0, len(res.Segments))
	for _, sp := range res.Spans() {
		spans = append(spans, domain.VectorSpan{Text: sp.Text, Vector: sp.Vector.Slice()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"segments":   spans,
		"plain_text": res.PlainText,
	})
}

func (s *server) directive(w http.ResponseWriter, req *http.Request) {
	var in directiveRequest
	if err := decodeJSONBody(req, s.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	body := strings.TrimSpace(in.Body)
	if strings.HasPrefix(body, "[") && strings.HasSuffix(body, "]") {
		body = body[1 : len(body)-1]
	}
	v, diags := s.Parser.ParseDirective(body)
	writeJSON(w, http.StatusOK, map[string]any{
		"vector":      v.Slice(),
		"diagnostics": synth.DiagnosticViews(diags),
	})
}

func (s *server) merge(w http.ResponseWriter, req *http.Request) {
	var in mergeRequest
	if err := decodeJSONBody(req, s.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	vectors := make([]emotion.Vector, 0, len(in.Vectors))
	for i, raw := range in.Vectors {
		v, err := emotion.FromSlice(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("vectors[%d]: %v", i, err)})
			return
		}
		vectors = append(vectors, v)
	}
	merged, err := emotion.MergeVectors(vectors, in.Weights)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vector": merged.Slice()})
}

func (s *server) normalize(w http.ResponseWriter, req *http.Request) {
	var in vectorRequest
	if err := decodeJSONBody(req, s.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	v, err := emotion.FromSlice(in.Vector)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vector": emotion.NormalizeMax(v).Slice()})
}

func (s *server) describe(w http.ResponseWriter, req *http.Request) {
	var in describeRequest
	if err := decodeJSONBody(req, s.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	intensity := defaultDescribeIntensity
	if in.Intensity != nil {
		if math.IsNaN(*in.Intensity) || math.IsInf(*in.Intensity, 0) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "intensity must be a finite number"})
			return
		}
		intensity = *in.Intensity
	}
	v, diags := markup.ParseDescription(in.Description, intensity)
	writeJSON(w, http.StatusOK, map[string]any{
		"vector":      v.Slice(),
		"diagnostics": synth.DiagnosticViews(diags),
	})
}

func (s *server) listVoices(w http.ResponseWriter, req *http.Request) {
	if !s.Voices.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": voice.ErrNoSource.Error()})
		return
	}
	profiles, err := s.Voices.List(req.Context())
	if err != nil {
		s.Logger.Error("list voices failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": profiles, "count": len(profiles)})
}

func (s *server) createVoice(w http.ResponseWriter, req *http.Request) {
	if s.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": voice.ErrNoSource.Error()})
		return
	}
	var in createVoiceRequest
	if err := decodeJSONBody(req, s.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name is required"})
		return
	}
	profile, err := s.Store.CreateVoiceProfile(req.Context(), db.NewVoiceProfile{
		Name:        in.Name,
		Description: in.Description,
		Gender:      in.Gender,
		SourceMedia: in.SourceMedia,
		Metadata:    in.Metadata,
	})
	if errors.Is(err, db.ErrVoiceExists) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	if err != nil {
		s.Logger.Error("create voice failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	s.Voices.Put(profile)
	writeJSON(w, http.StatusCreated, profile)
}

func (s *server) getVoice(w http.ResponseWriter, req *http.Request) {
	if !s.Voices.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": voice.ErrNoSource.Error()})
		return
	}
	profile, err := s.Voices.Lookup(req.Context(), chi.URLParam(req, "voiceID"))
	if errors.Is(err, db.ErrVoiceNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *server) deleteVoice(w http.ResponseWriter, req *http.Request) {
	if s.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": voice.ErrNoSource.Error()})
		return
	}
	voiceID := chi.URLParam(req, "voiceID")
	err := s.Store.DeleteVoiceProfile(req.Context(), voiceID)
	if errors.Is(err, db.ErrVoiceNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	s.Voices.Invalidate(voiceID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) synthesize(w http.ResponseWriter, req *http.Request) {
	var in domain.SayRequest
	if err := decodeJSONBody(req, s.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if in.Speed < 0 || math.IsNaN(in.Speed) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "speed must be positive"})
		return
	}

	out, err := s.Service.Synthesize(req.Context(), in)
	switch {
	case errors.Is(err, synth.ErrVoiceRequired), errors.Is(err, synth.ErrTextRequired):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	case errors.Is(err, db.ErrVoiceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	case err != nil && out.Plan.RequestID != "":
		s.Logger.Error("synthesis backend failed", "request_id", out.Plan.RequestID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "request_id": out.Plan.RequestID})
		return
	case err != nil:
		s.Logger.Error("synthesis failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, synthesizeResponse{
		RequestID:       out.Plan.RequestID,
		Plan:            out.Plan,
		Result:          out.Result,
		EmotionsApplied: out.Plan.EmotionsApplied,
		Diagnostics:     synth.DiagnosticViews(out.Parse.Diagnostics),
	})
}

// stream answers every text frame with the ParseResponse for it.
func (s *server) stream(w http.ResponseWriter, req *http.Request) {
	ws, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.Logger.Warn("upgrade websocket failed", "error", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(s.StreamMaxFrame)

	for {
		msgType, payload, err := ws.ReadMessage()
		if err != nil {
			s.Logger.Info("markup stream closed", "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			_ = ws.WriteJSON(map[string]any{"error": "only text frames are supported"})
			continue
		}
		text := string(payload)
		_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := ws.WriteJSON(synth.ParseView(text, s.Parser.Parse(text))); err != nil {
			s.Logger.Warn("write markup stream failed", "error", err)
			return
		}
	}
}

func (s *server) warnDiagnostics(route string, diags []markup.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	s.Logger.Warn("markup degraded", "route", route, "diagnostics", len(diags), "first", diags[0].String())
}

func decodeJSONBody(req *http.Request, maxBytes int64, out any) error {
	defer req.Body.Close()
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return fmt.Errorf("request body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid json: multiple JSON values")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
