package systemdboot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kairos-io/nextboot/internal/constants"
)

// Entry is a systemd-boot loader entry.
type Entry struct {
	Title string
	Root  string
	// ID is the file name of the entry, which is also its loader entry id.
	ID string
}

func (e Entry) String() string {
	return e.Title
}

// ParseError reports a structurally invalid entry file.
type ParseError struct {
	ID     string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.ID, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return constants.ErrCatalogParse
}

// ParseEntry parses the content of the entry file id. The file must hold
// exactly one title line and exactly one options line carrying a root= token.
func ParseEntry(id string, content []byte) (Entry, error) {
	if !utf8.ValidString(id) {
		return Entry{}, &ParseError{ID: fmt.Sprintf("%q", id), Reason: "file name is not valid utf8"}
	}

	var titles, options []string
	for _, line := range strings.Split(string(content), "\n") {
		key, value := splitLine(line)
		switch key {
		case "title":
			titles = append(titles, value)
		case "options":
			options = append(options, value)
		}
	}

	switch {
	case len(titles) == 0:
		return Entry{}, &ParseError{ID: id, Reason: "no title line"}
	case len(titles) > 1:
		return Entry{}, &ParseError{ID: id, Reason: fmt.Sprintf("%d title lines", len(titles))}
	case titles[0] == "":
		return Entry{}, &ParseError{ID: id, Reason: "empty title"}
	case len(options) == 0:
		return Entry{}, &ParseError{ID: id, Reason: "no options line"}
	case len(options) > 1:
		return Entry{}, &ParseError{ID: id, Reason: fmt.Sprintf("%d options lines", len(options))}
	}

	root, ok := rootFromOptions(options[0])
	if !ok {
		return Entry{}, &ParseError{ID: id, Reason: "options line has no root= token"}
	}
	return Entry{Title: titles[0], Root: root, ID: id}, nil
}

// splitLine returns the key and the trimmed value of an entry line.
// Comments and blank lines return an empty key.
func splitLine(line string) (string, string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", ""
	}
	key, value := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		key, value = line[:i], line[i+1:]
	}
	return key, strings.TrimSpace(value)
}

func rootFromOptions(options string) (string, bool) {
	for _, token := range strings.Fields(options) {
		if v, ok := strings.CutPrefix(token, "root="); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// replaceTitle rewrites the value of the title line of content, keeping
// everything up to the value as it is.
func replaceTitle(content []byte, title string) ([]byte, bool) {
	lines := strings.Split(string(content), "\n")
	replaced := false
	for i, line := range lines {
		key, _ := splitLine(line)
		if key != "title" {
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		prefix := len(line) - len(trimmed) + len("title")
		rest := line[prefix:]
		prefix += len(rest) - len(strings.TrimLeft(rest, " \t"))
		lines[i] = line[:prefix] + title + trailingCR(line)
		replaced = true
	}
	return []byte(strings.Join(lines, "\n")), replaced
}

func trailingCR(line string) string {
	if strings.HasSuffix(line, "\r") {
		return "\r"
	}
	return ""
}
