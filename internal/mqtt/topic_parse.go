package mqtt

import (
	"fmt"
	"strings"
)

// TerminalTopic is a parsed {prefix}/terminal/{terminalID}/{kind}[/...] topic.
type TerminalTopic struct {
	TerminalID string
	Kind       string
	Rest       []string
}

func ParseTerminalTopic(topic, prefix string) (TerminalTopic, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return TerminalTopic{}, fmt.Errorf("topic prefix mismatch: %s", topic)
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 3 || parts[0] != "terminal" {
		return TerminalTopic{}, fmt.Errorf("invalid topic pattern: %s", topic)
	}
	if parts[1] == "" || parts[2] == "" {
		return TerminalTopic{}, fmt.Errorf("empty topic level: %s", topic)
	}
	return TerminalTopic{TerminalID: parts[1], Kind: parts[2], Rest: parts[3:]}, nil
}

// validRequestID reports whether id can be used as a single topic level.
func validRequestID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/+#\x00")
}
