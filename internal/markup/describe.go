package markup

import (
	"math"
	"strings"

	"golang.org/x/text/width"

	"emotag/internal/emotion"
)

// ParseDescription builds a vector from a loose description. "happy,calm" sets each
// listed kind to defaultIntensity (on the 0-1 scale); anything containing ':' is read
// as a directive body, e.g. "happy:80,calm:50".
func ParseDescription(desc string, defaultIntensity float64) (emotion.Vector, []Diagnostic) {
	folded := width.Fold.String(desc)
	if strings.TrimSpace(folded) == "" {
		return emotion.Vector{}, nil
	}
	if strings.Contains(folded, ":") {
		return defaultParser.ParseDirective(folded)
	}

	if math.IsNaN(defaultIntensity) {
		defaultIntensity = 0
	}
	level := math.Min(math.Max(defaultIntensity, 0), 1)

	var (
		v     emotion.Vector
		diags []Diagnostic
	)
	for _, raw := range strings.Split(folded, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		k, err := emotion.ResolveKind(name)
		if err != nil {
			diags = append(diags, Diagnostic{
				Code:    CodeUnknownEmotion,
				Message: err.Error(),
				Token:   name,
			})
			continue
		}
		v[k] = level
	}
	return v, diags
}
