package synth

import (
	"emotag/internal/domain"
	"emotag/internal/markup"
)

// ParseView renders a parse result for JSON transport. Rune offsets are computed
// against input.
func ParseView(input string, res markup.Result) domain.ParseResponse {
	segs := make([]domain.SegmentView, 0, len(res.Segments))
	for _, seg := range res.Segments {
		rs, re := seg.RuneRange(input)
		segs = append(segs, domain.SegmentView{
			Text:      seg.Text,
			Vector:    seg.Vector.Slice(),
			Start:     seg.Start,
			End:       seg.End,
			RuneStart: rs,
			RuneEnd:   re,
		})
	}
	return domain.ParseResponse{
		Segments:    segs,
		PlainText:   res.PlainText,
		Diagnostics: DiagnosticViews(res.Diagnostics),
	}
}

func DiagnosticViews(diags []markup.Diagnostic) []domain.DiagnosticView {
	if len(diags) == 0 {
		return nil
	}
	out := make([]domain.DiagnosticView, 0, len(diags))
	for _, d := range diags {
		out = append(out, domain.DiagnosticView{
			Code:    string(d.Code),
			Message: d.Message,
			Offset:  d.Offset,
			Token:   d.Token,
		})
	}
	return out
}
