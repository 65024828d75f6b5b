package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"emotag/internal/domain"
	"emotag/internal/synth"
)

type HubConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	// RequestTimeout bounds one say request end to end.
	RequestTimeout time.Duration
}

// Synthesizer plans (and optionally renders) one say request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req domain.SayRequest) (synth.Outcome, error)
}

// Hub accepts say requests from terminals and publishes plans back to them.
type Hub struct {
	cfg    HubConfig
	client paho.Client
	synth  Synthesizer
	logger *slog.Logger

	onlineMu sync.RWMutex
	online   map[string]time.Time
}

func NewHub(cfg HubConfig, synthesizer Synthesizer, logger *slog.Logger) *Hub {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Hub{
		cfg:    cfg,
		synth:  synthesizer,
		logger: logger,
		online: make(map[string]time.Time),
	}
}

func (h *Hub) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(h.cfg.BrokerURL).
		SetClientID(h.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.logger.Error("mqtt connection lost", "error", err)
	})

	h.client = paho.NewClient(opts)
	if token := h.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	if err := h.subscribeHandlers(ctx); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		h.client.Disconnect(100)
	}()

	return nil
}

func (h *Hub) subscribeHandlers(ctx context.Context) error {
	say := func(_ paho.Client, msg paho.Message) {
		topic, payload := msg.Topic(), msg.Payload()
		go h.handleSay(ctx, topic, payload)
	}
	if token := h.client.Subscribe(TopicTerminalSay(h.cfg.TopicPrefix), 1, say); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := h.client.Subscribe(TopicTerminalOnline(h.cfg.TopicPrefix), 1, h.handleOnline); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (h *Hub) handleOnline(_ paho.Client, msg paho.Message) {
	tt, err := ParseTerminalTopic(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil || tt.Kind != kindOnline || len(tt.Rest) > 0 {
		h.logger.Warn("skip invalid online topic", "topic", msg.Topic(), "error", err)
		return
	}
	terminalID := tt.TerminalID
	payload := strings.TrimSpace(strings.ToLower(string(msg.Payload())))
	online := payload == "1" || payload == "true" || payload == "online"
	h.setOnline(terminalID, online)
	h.logger.Info("terminal online status", "terminal_id", terminalID, "online", online)
}

func (h *Hub) setOnline(terminalID string, online bool) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	if online {
		h.online[terminalID] = time.Now()
		return
	}
	delete(h.online, terminalID)
}

// OnlineTerminals lists terminals that last reported online, sorted.
func (h *Hub) OnlineTerminals() []string {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	out := make([]string, 0, len(h.online))
	for id := range h.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) handleSay(ctx context.Context, topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()

	replyTopic, body, ok := h.process(ctx, topic, payload)
	if !ok {
		return
	}
	if token := h.client.Publish(replyTopic, 1, false, body); token.Wait() && token.Error() != nil {
		h.logger.Warn("publish plan failed", "topic", replyTopic, "error", token.Error())
	}
}

// process turns one say message into the reply topic and envelope. ok is false when
// the message cannot be answered at all.
func (h *Hub) process(ctx context.Context, topic string, payload []byte) (string, []byte, bool) {
	tt, err := ParseTerminalTopic(topic, h.cfg.TopicPrefix)
	if err != nil || tt.Kind != kindSay || len(tt.Rest) > 0 {
		h.logger.Warn("skip invalid say topic", "topic", topic, "error", err)
		return "", nil, false
	}
	terminalID := tt.TerminalID

	var req domain.SayRequest
	env := domain.PlanEnvelope{TerminalID: terminalID}
	if err := json.Unmarshal(payload, &req); err != nil {
		h.logger.Warn("invalid say payload", "terminal_id", terminalID, "error", err)
		env.Error = "invalid payload: " + err.Error()
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	switch {
	case req.RequestID == "":
		req.RequestID = uuid.NewString()
	case !validRequestID(req.RequestID):
		h.logger.Warn("invalid say request_id", "terminal_id", terminalID, "request_id", req.RequestID)
		if env.Error == "" {
			env.Error = fmt.Sprintf("invalid request_id %q: must not contain '/', '+' or '#'", req.RequestID)
		}
		req.RequestID = uuid.NewString()
	}
	env.RequestID = req.RequestID

	if env.Error == "" {
		out, err := h.synth.Synthesize(ctx, req)
		if out.Plan.RequestID != "" {
			plan := out.Plan
			env.Plan = &plan
			env.Result = out.Result
			env.Diagnostics = synth.DiagnosticViews(out.Parse.Diagnostics)
		}
		if err != nil {
			h.logger.Warn("say request failed", "terminal_id", terminalID, "request_id", req.RequestID, "error", err)
			env.Error = err.Error()
		} else {
			env.OK = true
		}
	}

	body, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("encode plan envelope failed", "error", err)
		return "", nil, false
	}
	h.setOnline(terminalID, true)
	return TopicPlan(h.cfg.TopicPrefix, terminalID, req.RequestID), body, true
}
