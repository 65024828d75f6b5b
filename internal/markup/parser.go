// Package markup turns text annotated with [Name:Intensity, ...] directives into
// segments of plain text, each carrying the emotion vector in scope for it.
//
// A directive applies to the text after it up to the next directive or the end of
// input. Text before the first directive carries the zero vector. Offsets are byte
// offsets into the original string; use Segment.RuneRange for code points.
//
// Parsing never fails. Malformed pairs and directives are reported as Diagnostics and
// otherwise degrade to literal text or zero intensities. Parser values are immutable
// and safe for concurrent use.
package markup

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"emotag/internal/emotion"
)

// AdjacencyPolicy decides what happens to a directive followed directly by another
// directive with no speakable text in between.
type AdjacencyPolicy string

const (
	// AdjacencyReplace discards the earlier directive along with its empty text.
	AdjacencyReplace AdjacencyPolicy = "replace"
	// AdjacencyMerge treats the run of directives as one: later pairs overlay earlier ones.
	AdjacencyMerge AdjacencyPolicy = "merge"
)

func ParseAdjacencyPolicy(s string) (AdjacencyPolicy, error) {
	switch AdjacencyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AdjacencyReplace:
		return AdjacencyReplace, nil
	case AdjacencyMerge:
		return AdjacencyMerge, nil
	default:
		return "", fmt.Errorf("unsupported adjacency policy: %s", s)
	}
}

type Options struct {
	// KeepEmpty retains segments whose text is empty or whitespace only.
	KeepEmpty bool
	Adjacency AdjacencyPolicy
}

// Segment is a run of text with the vector in scope for it. Start and End are byte
// offsets of Text in the original input. Directive indexes Result.Directives, or is
// -1 for text before the first directive.
type Segment struct {
	Text      string
	Vector    emotion.Vector
	Start     int
	End       int
	Directive int
}

// RuneRange converts the byte offsets of s into code-point offsets within input.
func (s Segment) RuneRange(input string) (int, int) {
	start := min(max(s.Start, 0), len(input))
	end := min(max(s.End, start), len(input))
	runeStart := utf8.RuneCountInString(input[:start])
	return runeStart, runeStart + utf8.RuneCountInString(input[start:end])
}

// Directive is a bracketed token found in the input. Start and End cover the brackets.
// Kinds lists the kinds its pairs set, so an explicit zero is distinguishable from
// an absent kind.
type Directive struct {
	Raw    string
	Body   string
	Start  int
	End    int
	Vector emotion.Vector
	Kinds  emotion.KindSet
}

// Span is the offset-free projection of a Segment.
type Span struct {
	Text   string
	Vector emotion.Vector
}

type Result struct {
	Segments    []Segment
	PlainText   string
	Directives  []Directive
	Diagnostics []Diagnostic
}

// Spans projects the segments onto (text, vector) pairs.
func (r Result) Spans() []Span {
	out := make([]Span, len(r.Segments))
	for i, seg := range r.Segments {
		out[i] = Span{Text: seg.Text, Vector: seg.Vector}
	}
	return out
}

type Parser struct {
	opts Options
}

func NewParser(opts Options) *Parser {
	if opts.Adjacency == "" {
		opts.Adjacency = AdjacencyReplace
	}
	return &Parser{opts: opts}
}

var defaultParser = NewParser(Options{})

// Parse uses the default options and drops diagnostics.
func Parse(text string) ([]Segment, string) {
	res := defaultParser.Parse(text)
	return res.Segments, res.PlainText
}

// ParseToVectors is Parse without offsets.
func ParseToVectors(text string) ([]Span, string) {
	res := defaultParser.Parse(text)
	return res.Spans(), res.PlainText
}

// ParseSingleDirective converts an already isolated directive body such as
// "Calm:60,Happy:40" into a vector.
func ParseSingleDirective(body string) emotion.Vector {
	v, _ := defaultParser.ParseDirective(body)
	return v
}

func (p *Parser) Options() Options {
	return p.opts
}

func (p *Parser) Parse(text string) Result {
	tokens, diags := scan(text)
	res := Result{Diagnostics: diags}

	var closed []Segment
	open := Segment{Start: 0, Directive: -1}
	for _, tok := range tokens {
		if tok.kind == tokenText {
			continue
		}

		prev := open
		prev.End = tok.start
		prev.Text = text[prev.Start:prev.End]
		closed = append(closed, prev)

		vec, set, pairDiags := p.parseDirective(tok.body)
		for i := range pairDiags {
			pairDiags[i].Offset = tok.start
		}
		res.Diagnostics = append(res.Diagnostics, pairDiags...)

		if p.opts.Adjacency == AdjacencyMerge && prev.Directive >= 0 && blank(prev.Text) {
			vec = emotion.Overlay(prev.Vector, vec, set)
		}

		res.Directives = append(res.Directives, Directive{
			Raw:    text[tok.start:tok.end],
			Body:   tok.body,
			Start:  tok.start,
			End:    tok.end,
			Vector: vec,
			Kinds:  set,
		})
		open = Segment{Start: tok.end, Vector: vec, Directive: len(res.Directives) - 1}
	}
	open.End = len(text)
	open.Text = text[open.Start:open.End]
	closed = append(closed, open)

	res.Segments = p.retain(closed, len(text))

	var sb strings.Builder
	for _, seg := range res.Segments {
		sb.WriteString(seg.Text)
	}
	res.PlainText = sb.String()
	return res
}

func (p *Parser) retain(closed []Segment, inputLen int) []Segment {
	out := make([]Segment, 0, len(closed))
	for _, seg := range closed {
		if seg.Directive < 0 && seg.Start == seg.End {
			continue
		}
		if !p.opts.KeepEmpty && blank(seg.Text) {
			continue
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		out = append(out, Segment{Start: inputLen, End: inputLen, Directive: -1})
	}
	return out
}

// ParseDirective converts a directive body into a vector. Pair problems are
// reported with Offset 0; Parse rebases them onto the directive position.
func (p *Parser) ParseDirective(body string) (emotion.Vector, []Diagnostic) {
	vec, _, diags := p.parseDirective(body)
	return vec, diags
}

func (p *Parser) parseDirective(body string) (emotion.Vector, emotion.KindSet, []Diagnostic) {
	var (
		pairs  []emotion.Pair
		tokens []string
		diags  []Diagnostic
	)
	folded := width.Fold.String(body)
	if strings.TrimSpace(folded) == "" {
		diags = append(diags, Diagnostic{
			Code:    CodeEmptyDirective,
			Message: "directive has no pairs",
			Token:   body,
		})
		return emotion.Vector{}, 0, diags
	}

	for _, raw := range strings.Split(folded, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		pair, diag, ok := parsePair(tok)
		if !ok {
			diags = append(diags, diag)
			continue
		}
		pairs = append(pairs, pair)
		tokens = append(tokens, tok)
	}

	vec, set, rejected := emotion.BuildVectorSet(pairs)
	for _, r := range rejected {
		diags = append(diags, rejectionDiagnostic(r, 0, tokens[r.Index]))
	}
	return vec, set, diags
}

func parsePair(tok string) (emotion.Pair, Diagnostic, bool) {
	name, value, ok := strings.Cut(tok, ":")
	if !ok {
		return emotion.Pair{}, Diagnostic{
			Code:    CodeMissingColon,
			Message: fmt.Sprintf("pair %q has no ':'", tok),
			Token:   tok,
		}, false
	}
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	intensity, err := strconv.ParseFloat(value, 64)
	// Overflow yields ±Inf, which BuildVector clamps.
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return emotion.Pair{}, Diagnostic{
			Code:    CodeInvalidIntensity,
			Message: fmt.Sprintf("intensity %q is not a number", value),
			Token:   tok,
		}, false
	}
	return emotion.Pair{Name: strings.TrimSpace(name), Intensity: intensity}, Diagnostic{}, true
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
