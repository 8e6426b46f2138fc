package catalog

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

// Paragraph is one control stanza, keyed by lower-cased field name
type Paragraph map[string]string

// Get returns a field value, trimmed
func (p Paragraph) Get(field string) (string, bool) {
	v, ok := p[strings.ToLower(field)]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// ParseParagraphs splits deb822 control text into paragraphs.
//
// Paragraphs are separated by blank lines. A field starts at column 0 as
// "Name: value"; lines starting with a space or tab continue the previous
// field. Lines starting with '#' outside a value are comments.
func ParseParagraphs(text string) ([]Paragraph, error) {
	var (
		paragraphs []Paragraph
		current    Paragraph
		lastField  string
		lineNo     int
	)

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, current)
		}
		current = nil
		lastField = ""
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if lastField == "" {
				return nil, fmt.Errorf("%w: line %d: continuation line without a field", domain.ErrMalformedParagraph, lineNo)
			}
			cont := line[1:]
			if strings.TrimSpace(cont) == "." {
				cont = ""
			}
			current[lastField] += "\n" + cont
			continue
		}

		if line[0] == '#' {
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("%w: line %d: expected \"Field: value\", got %q", domain.ErrMalformedParagraph, lineNo, line)
		}

		key := strings.ToLower(name)
		if current == nil {
			current = make(Paragraph)
		}
		// A repeated field replaces the earlier value
		current[key] = strings.TrimSpace(value)
		lastField = key
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedParagraph, err)
	}
	flush()

	return paragraphs, nil
}
