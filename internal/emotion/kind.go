package emotion

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Kind is one of the fixed emotion categories. Its value is the vector slot index.
type Kind int

const (
	Happy Kind = iota
	Angry
	Sad
	Afraid
	Disgusted
	Melancholic
	Surprised
	Calm
)

// NumKinds is the vector width.
const NumKinds = 8

var ErrUnknownKind = errors.New("unknown emotion")

var kindNames = [NumKinds]string{
	Happy:       "happy",
	Angry:       "angry",
	Sad:         "sad",
	Afraid:      "afraid",
	Disgusted:   "disgusted",
	Melancholic: "melancholic",
	Surprised:   "surprised",
	Calm:        "calm",
}

// Read-only after init.
var kindAliases = map[string]Kind{
	"happy":           Happy,
	"angry":           Angry,
	"sad":             Sad,
	"afraid":          Afraid,
	"fear":            Afraid,
	"disgusted":       Disgusted,
	"disgust":         Disgusted,
	"melancholic":     Melancholic,
	"melancholy":      Melancholic,
	"sad_melancholic": Melancholic,
	"surprised":       Surprised,
	"surprise":        Surprised,
	"calm":            Calm,
	"peaceful":        Calm,
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) Valid() bool {
	return k >= 0 && k < NumKinds
}

// Kinds returns every kind in slot order.
func Kinds() []Kind {
	out := make([]Kind, NumKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Aliases returns a copy of the name table, canonical names included.
func Aliases() map[string]Kind {
	out := make(map[string]Kind, len(kindAliases))
	for k, v := range kindAliases {
		out[k] = v
	}
	return out
}

// ResolveKind matches name case-insensitively against canonical names and aliases.
func ResolveKind(name string) (Kind, error) {
	key := strings.TrimSpace(strings.ToLower(name))
	if key == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownKind)
	}
	k, ok := kindAliases[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, strings.TrimSpace(name))
	}
	return k, nil
}

// KindSet is a set of kinds, one bit per slot.
type KindSet uint8

func (s KindSet) With(k Kind) KindSet {
	if !k.Valid() {
		return s
	}
	return s | 1<<uint(k)
}

func (s KindSet) Has(k Kind) bool {
	return k.Valid() && s&(1<<uint(k)) != 0
}

func (s KindSet) Len() int {
	return bits.OnesCount8(uint8(s))
}
