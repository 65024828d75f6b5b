package markup

import (
	"errors"
	"fmt"

	"emotag/internal/emotion"
)

// Code classifies a recoverable markup problem.
type Code string

const (
	CodeUnknownEmotion   Code = "unknown_emotion"
	CodeInvalidIntensity Code = "invalid_intensity"
	CodeMissingColon     Code = "missing_colon"
	CodeUnclosedBracket  Code = "unclosed_bracket"
	CodeEmptyDirective   Code = "empty_directive"
)

// Diagnostic describes input that was skipped or degraded to literal text.
// Offset is the byte offset of the directive (or bracket) it belongs to.
type Diagnostic struct {
	Code    Code
	Message string
	Offset  int
	Token   string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at %d: %s", d.Code, d.Offset, d.Message)
}

func rejectionDiagnostic(r emotion.Rejection, offset int, token string) Diagnostic {
	code := CodeUnknownEmotion
	if errors.Is(r.Err, emotion.ErrInvalidIntensity) {
		code = CodeInvalidIntensity
	}
	return Diagnostic{
		Code:    code,
		Message: r.Err.Error(),
		Offset:  offset,
		Token:   token,
	}
}
