package protocol

import "strings"

// block-opening and block-closing keywords of the evaluation language
var blockOpeners = map[string]bool{
	"function": true,
	"do":       true,
	"then":     true,
	"repeat":   true,
}

var blockClosers = map[string]bool{
	"end":   true,
	"until": true,
}

// continuation tokens: a buffer ending in one of these is waiting for the
// rest of an expression
var continuationTokens = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "^": true,
	"=": true, "==": true, "~=": true, "<": true, ">": true,
	"<=": true, ">=": true, "..": true, ",": true,
	"and": true, "or": true, "not": true,
}

// InputComplete judges whether buffered free-text input forms a
// syntactically complete unit: the net nesting depth across block keywords
// and bracket punctuation is zero and the text does not end in a dangling
// continuation marker. It intentionally errs toward "complete": a wrong
// guess surfaces as an evaluation error rather than a hang.
func InputComplete(text string) bool {
	tokens := scanTokens(text)
	if len(tokens) == 0 {
		return false
	}

	depth := 0
	for _, tok := range tokens {
		switch {
		case blockOpeners[tok], tok == "(", tok == "{", tok == "[":
			depth++
		case blockClosers[tok], tok == ")", tok == "}", tok == "]":
			depth--
		case tok == "elseif":
			// closes the previous then-block; its own then reopens one
			depth--
		}
	}
	if depth > 0 {
		return false
	}

	return !continuationTokens[tokens[len(tokens)-1]]
}

// scanTokens reduces source text to the tokens the heuristic cares about:
// identifiers/keywords, bracket punctuation and trailing-operator
// candidates. String literals and comments are skipped so their contents
// cannot unbalance the count.
func scanTokens(text string) []string {
	var tokens []string
	i := 0
	n := len(text)

	for i < n {
		c := text[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < n && text[i+1] == '-':
			// comment to end of line
			for i < n && text[i] != '\n' {
				i++
			}

		case c == '\'' || c == '"':
			quote := c
			i++
			for i < n && text[i] != quote {
				if text[i] == '\\' {
					i++
				}
				i++
			}
			if i < n {
				i++
			}
			tokens = append(tokens, "<str>")

		case isIdentByte(c):
			j := i
			for j < n && isIdentByte(text[j]) {
				j++
			}
			tokens = append(tokens, text[i:j])
			i = j

		default:
			// greedily take two-byte operators so ".." and "==" are
			// not miscounted as their halves
			if i+1 < n {
				two := text[i : i+2]
				if continuationTokens[two] {
					tokens = append(tokens, two)
					i += 2
					continue
				}
			}
			tokens = append(tokens, string(c))
			i++
		}
	}
	return tokens
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}

// JoinBuffer assembles accumulated input lines into one evaluation unit.
func JoinBuffer(lines []string) string {
	return strings.Join(lines, "\n")
}
