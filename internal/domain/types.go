package domain

import "time"

type SegmentView struct {
	Text      string    `json:"text"`
	Vector    []float64 `json:"vector"`
	Start     int       `json:"start"`
	End       int       `json:"end"`
	RuneStart int       `json:"rune_start"`
	RuneEnd   int       `json:"rune_end"`
}

type DiagnosticView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Offset  int    `json:"offset"`
	Token   string `json:"token,omitempty"`
}

type ParseResponse struct {
	Segments    []SegmentView    `json:"segments"`
	PlainText   string           `json:"plain_text"`
	Diagnostics []DiagnosticView `json:"diagnostics,omitempty"`
}

type VectorSpan struct {
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

type VoiceProfile struct {
	VoiceID     string         `json:"voice_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Gender      string         `json:"gender,omitempty"`
	SourceMedia string         `json:"source_media,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Synthesis backend payloads. Offsets never leave the service.

type PlanSegment struct {
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

type SynthesisPlan struct {
	RequestID       string         `json:"request_id"`
	VoiceID         string         `json:"voice_id"`
	Segments        []PlanSegment  `json:"segments"`
	PlainText       string         `json:"plain_text"`
	Speed           float64        `json:"speed,omitempty"`
	OutputFormat    string         `json:"output_format,omitempty"`
	EmotionsApplied map[string]int `json:"emotions_applied"`
}

type SynthesisResult struct {
	RequestID string  `json:"request_id"`
	AudioURL  string  `json:"audio_url,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Format    string  `json:"format,omitempty"`
}

// MQTT payloads

type SayRequest struct {
	RequestID    string  `json:"request_id,omitempty"`
	VoiceID      string  `json:"voice_id"`
	Text         string  `json:"text"`
	Speed        float64 `json:"speed,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
}

type PlanEnvelope struct {
	RequestID   string           `json:"request_id"`
	TerminalID  string           `json:"terminal_id"`
	OK          bool             `json:"ok"`
	Plan        *SynthesisPlan   `json:"plan,omitempty"`
	Result      *SynthesisResult `json:"result,omitempty"`
	Diagnostics []DiagnosticView `json:"diagnostics,omitempty"`
	Error       string           `json:"error,omitempty"`
}
