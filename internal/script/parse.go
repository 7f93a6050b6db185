package script

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"webenv/internal/envconfig"
)

var assignmentPattern = regexp.MustCompile(`([A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*)\s*=\s*\{`)

// Script is the parsed content of an env-config.js file.
type Script struct {
	Namespace string
	Values    map[string]string
	Unknown   []string // keys outside the Firebase config, in file order
}

// Config returns the Firebase fields found in the script.
func (s *Script) Config() envconfig.FirebaseConfig {
	return envconfig.FromMap(s.Values)
}

// ParseFile parses the script at path.
func ParseFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse reads the first `NAME = { ... }` assignment from r. Keys may be bare
// or quoted, values may use any JavaScript quote style, and comments and a
// trailing comma are allowed.
func Parse(r io.Reader) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	src := stripComments(string(data))
	loc := assignmentPattern.FindStringSubmatchIndex(src)
	if loc == nil {
		return nil, ErrNoAssignment
	}

	p := &objectParser{src: src, pos: loc[1]}
	values, order, err := p.parse()
	if err != nil {
		return nil, err
	}

	s := &Script{
		Namespace: src[loc[2]:loc[3]],
		Values:    values,
	}
	for _, k := range order {
		if !envconfig.IsKey(k) {
			s.Unknown = append(s.Unknown, k)
		}
	}
	return s, nil
}

// stripComments removes // and /* */ comments that are not inside string literals.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				i = len(src)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

type objectParser struct {
	src string
	pos int
}

func (p *objectParser) parse() (map[string]string, []string, error) {
	values := make(map[string]string)
	var order []string

	for {
		p.skipSpace()
		if p.eof() {
			return nil, nil, fmt.Errorf("%w: unterminated object", ErrMalformedObject)
		}
		if p.peek() == '}' {
			p.pos++
			return values, order, nil
		}

		key, err := p.key()
		if err != nil {
			return nil, nil, err
		}
		p.skipSpace()
		if p.eof() || p.peek() != ':' {
			return nil, nil, fmt.Errorf("%w: expected ':' after %s", ErrMalformedObject, key)
		}
		p.pos++
		p.skipSpace()

		value, err := p.value()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = value

		p.skipSpace()
		if !p.eof() && p.peek() == ',' {
			p.pos++
		}
	}
}

func (p *objectParser) key() (string, error) {
	if c := p.peek(); c == '"' || c == '\'' {
		return p.quoted()
	}
	start := p.pos
	for !p.eof() && isIdentByte(p.peek()) {
		p.pos++
	}
	if start == p.pos {
		return "", fmt.Errorf("%w: unexpected %q at offset %d", ErrMalformedObject, p.peek(), p.pos)
	}
	return p.src[start:p.pos], nil
}

// value reads a string literal, or a bare token such as a number or boolean.
func (p *objectParser) value() (string, error) {
	if p.eof() {
		return "", fmt.Errorf("%w: missing value", ErrMalformedObject)
	}
	switch p.peek() {
	case '"', '\'', '`':
		return p.quoted()
	}
	start := p.pos
	for !p.eof() && p.peek() != ',' && p.peek() != '}' && p.peek() != '\n' {
		p.pos++
	}
	v := strings.TrimSpace(p.src[start:p.pos])
	if v == "" {
		return "", fmt.Errorf("%w: empty value", ErrMalformedObject)
	}
	return v, nil
}

func (p *objectParser) quoted() (string, error) {
	q := p.src[p.pos]
	p.pos++

	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch {
		case c == q:
			return b.String(), nil
		case c == '\\':
			if p.eof() {
				break
			}
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", fmt.Errorf("%w: unterminated string", ErrMalformedObject)
}

func (p *objectParser) escape(b *strings.Builder) error {
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case 'x':
		return p.hexRune(b, 2)
	case 'u':
		return p.hexRune(b, 4)
	case '\n':
		// line continuation
	default:
		b.WriteByte(c)
	}
	return nil
}

func (p *objectParser) hexRune(b *strings.Builder, n int) error {
	if p.pos+n > len(p.src) {
		return fmt.Errorf("%w: short escape sequence", ErrMalformedObject)
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
	if err != nil {
		return fmt.Errorf("%w: bad escape sequence", ErrMalformedObject)
	}
	p.pos += n

	r := rune(v)
	// Join UTF-16 surrogate pairs written as two consecutive \u escapes.
	if n == 4 && r >= 0xD800 && r < 0xDC00 && strings.HasPrefix(p.src[p.pos:], `\u`) && p.pos+6 <= len(p.src) {
		if lo, err := strconv.ParseUint(p.src[p.pos+2:p.pos+6], 16, 32); err == nil && lo >= 0xDC00 && lo < 0xE000 {
			r = (r-0xD800)<<10 + (rune(lo) - 0xDC00) + 0x10000
			p.pos += 6
		}
	}
	if !utf8.ValidRune(r) {
		r = utf8.RuneError
	}
	b.WriteRune(r)
	return nil
}

func (p *objectParser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *objectParser) peek() byte { return p.src[p.pos] }
func (p *objectParser) eof() bool  { return p.pos >= len(p.src) }

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
