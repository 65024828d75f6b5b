package markup

import "unicode/utf8"

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenDirective
)

type token struct {
	kind  tokenKind
	start int
	end   int
	// body is the text between the brackets of a directive token.
	body string
}

// scan splits text into literal and directive tokens in one left-to-right pass.
// A '[' with no ']' before the next '[' or end of input stays literal, and scanning
// resumes right after it so a later well-formed directive is still found. "[]" is
// literal as well.
func scan(text string) ([]token, []Diagnostic) {
	var (
		tokens    []token
		diags     []Diagnostic
		textStart int
	)
	i := 0
	for i < len(text) {
		if text[i] != '[' {
			i++
			continue
		}
		closeAt := findClose(text, i+1)
		if closeAt < 0 {
			diags = append(diags, Diagnostic{
				Code:    CodeUnclosedBracket,
				Message: "bracket is not closed, kept as text",
				Offset:  i,
				Token:   unclosedToken(text, i),
			})
			i++
			continue
		}
		if closeAt == i+1 {
			i = closeAt + 1
			continue
		}
		if textStart < i {
			tokens = append(tokens, token{kind: tokenText, start: textStart, end: i})
		}
		tokens = append(tokens, token{
			kind:  tokenDirective,
			start: i,
			end:   closeAt + 1,
			body:  text[i+1 : closeAt],
		})
		i = closeAt + 1
		textStart = i
	}
	if textStart < len(text) {
		tokens = append(tokens, token{kind: tokenText, start: textStart, end: len(text)})
	}
	return tokens, diags
}

// findClose returns the index of the ']' closing a directive whose body starts at
// from, or -1 when another '[' or the end of input comes first.
func findClose(text string, from int) int {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case ']':
			return j
		case '[':
			return -1
		}
	}
	return -1
}

func unclosedToken(text string, at int) string {
	end := len(text)
	for j := at + 1; j < len(text); j++ {
		if text[j] == '[' {
			end = j
			break
		}
	}
	const maxToken = 32
	if end-at > maxToken {
		end = at + maxToken
		for end > at && !utf8.RuneStart(text[end]) {
			end--
		}
	}
	return text[at:end]
}
