package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"emotag/internal/markup"
)

type ServerConfig struct {
	HTTPAddr         string
	ReadBodyMaxBytes int64
	KeepEmpty        bool
	Adjacency        markup.AdjacencyPolicy
	DBDSN            string
	MQTTBrokerURL    string
	MQTTClientID     string
	MQTTUsername     string
	MQTTPassword     string
	MQTTTopicPrefix  string
	SynthBaseURL     string
	SynthTimeout     time.Duration
	VoiceCacheTTL    time.Duration
	StreamMaxFrame   int64
}

func LoadServerConfig() (ServerConfig, error) {
	adjacency, err := markup.ParseAdjacencyPolicy(os.Getenv("EMOTAG_ADJACENCY"))
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		HTTPAddr:         getenvDefault("EMOTAG_HTTP_ADDR", ":9012"),
		ReadBodyMaxBytes: int64(getenvIntDefault("EMOTAG_MAX_BODY_BYTES", 65536)),
		KeepEmpty:        getenvBoolDefault("EMOTAG_KEEP_EMPTY_SEGMENTS", false),
		Adjacency:        adjacency,
		DBDSN:            os.Getenv("DB_DSN"),
		MQTTBrokerURL:    os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:     getenvDefault("EMOTAG_MQTT_CLIENT_ID", "emotag-server"),
		MQTTUsername:     os.Getenv("MQTT_USERNAME"),
		MQTTPassword:     os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix:  getenvDefault("MQTT_TOPIC_PREFIX", "emotag"),
		SynthBaseURL:     strings.TrimRight(os.Getenv("SYNTH_BASE_URL"), "/"),
		SynthTimeout:     time.Duration(getenvIntDefault("SYNTH_TIMEOUT_SECONDS", 30)) * time.Second,
		VoiceCacheTTL:    time.Duration(getenvIntDefault("VOICE_CACHE_TTL_SECONDS", 60)) * time.Second,
		StreamMaxFrame:   int64(getenvIntDefault("EMOTAG_STREAM_MAX_FRAME_BYTES", 65536)),
	}

	if cfg.ReadBodyMaxBytes <= 0 {
		return ServerConfig{}, fmt.Errorf("EMOTAG_MAX_BODY_BYTES must be positive")
	}
	if cfg.StreamMaxFrame <= 0 {
		return ServerConfig{}, fmt.Errorf("EMOTAG_STREAM_MAX_FRAME_BYTES must be positive")
	}
	if cfg.MQTTBrokerURL != "" && cfg.MQTTTopicPrefix == "" {
		return ServerConfig{}, fmt.Errorf("MQTT_TOPIC_PREFIX is required when MQTT_BROKER_URL is set")
	}

	return cfg, nil
}

// ParserOptions returns the markup options selected by the environment.
func (c ServerConfig) ParserOptions() markup.Options {
	return markup.Options{KeepEmpty: c.KeepEmpty, Adjacency: c.Adjacency}
}

func getenvDefault(key, val string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvBoolDefault(key string, val bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return val
	}
	return b
}
