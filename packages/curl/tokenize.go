package curl

import (
	"errors"
	"strings"
)

// tokenize splits a command line into tokens respecting shell quoting, so
// quoted strings containing spaces or special characters survive as single
// tokens. It fails on an unterminated quote.
func tokenize(cmd string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false
	hasToken := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inSingleQuote {
				// Backslash is literal inside single quotes.
				current.WriteRune(r)
			} else {
				escaped = true
			}
		case '\'':
			if inDoubleQuote {
				current.WriteRune(r)
			} else {
				inSingleQuote = !inSingleQuote
				hasToken = true
			}
		case '"':
			if inSingleQuote {
				current.WriteRune(r)
			} else {
				inDoubleQuote = !inDoubleQuote
				hasToken = true
			}
		case ' ', '\t', '\n':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else if current.Len() > 0 || hasToken {
				tokens = append(tokens, current.String())
				current.Reset()
				hasToken = false
			}
		default:
			current.WriteRune(r)
		}
	}

	if inSingleQuote || inDoubleQuote {
		return nil, errors.New("unterminated quote")
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if current.Len() > 0 || hasToken {
		tokens = append(tokens, current.String())
	}

	return tokens, nil
}
