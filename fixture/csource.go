package fixture

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrEscape is wrapped by the errors ParseC returns for malformed escape
// sequences in a string literal.
var ErrEscape = errors.New("bad escape")

var (
	// const char * name = "..." "...";  or  char name[] = "...";
	cStringDecl = regexp.MustCompile(`char\s*(?:\*\s*(?:const\s+)?\w+|\w+\s*\[\s*\d*\s*\])\s*=\s*((?:"(?:[^"\\\n]|\\.)*"\s*)+);`)
	cLiteral    = regexp.MustCompile(`"((?:[^"\\\n]|\\.)*)"`)
)

// ParseC builds a program from the source of a C fixture. The string is
// the first string literal used to initialise a char pointer or array;
// adjacent literals are concatenated and escapes are decoded.
func ParseC(name string, src []byte) (*Program, error) {
	m := cStringDecl.FindSubmatch(stripComments(src))
	if m == nil {
		return nil, fmt.Errorf("%s: no string declaration found", name)
	}
	var s []byte
	for _, lit := range cLiteral.FindAllSubmatch(m[1], -1) {
		b, err := unescapeC(lit[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		s = append(s, b...)
	}
	return FromString(name, s), nil
}

func stripComments(src []byte) []byte {
	var (
		out     = make([]byte, 0, len(src))
		inStr   bool
		inChar  bool
		escaped bool
	)
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case escaped:
			escaped = false
		case (inStr || inChar) && c == '\\':
			escaped = true
		case inStr:
			inStr = c != '"'
		case inChar:
			inChar = c != '\''
		case c == '"':
			inStr = true
		case c == '\'':
			inChar = true
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			c = '\n'
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i++
			c = ' '
		}
		out = append(out, c)
	}
	return out
}

func unescapeC(lit []byte) ([]byte, error) {
	var out []byte
	for i := 0; i < len(lit); i++ {
		c := lit[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i == len(lit) {
			return nil, fmt.Errorf("%w: trailing backslash in %q", ErrEscape, lit)
		}
		switch c = lit[i]; c {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'v':
			out = append(out, '\v')
		case '\\', '\'', '"', '?':
			out = append(out, c)
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(lit) && j < i+3 && lit[j] >= '0' && lit[j] <= '7' {
				j++
			}
			v, err := strconv.ParseUint(string(lit[i:j]), 8, 16)
			if err != nil || v > 0xff {
				return nil, fmt.Errorf("%w: octal escape \\%s out of range", ErrEscape, lit[i:j])
			}
			out = append(out, byte(v))
			i = j - 1
		case 'x':
			j := i + 1
			for j < len(lit) && isHex(lit[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("%w: \\x with no hex digits", ErrEscape)
			}
			v, err := strconv.ParseUint(string(lit[i+1:j]), 16, 64)
			if err != nil || v > 0xff {
				return nil, fmt.Errorf("%w: hex escape \\x%s out of range", ErrEscape, lit[i+1:j])
			}
			out = append(out, byte(v))
			i = j - 1
		default:
			return nil, fmt.Errorf("%w: unknown escape \\%c", ErrEscape, c)
		}
	}
	return out, nil
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
