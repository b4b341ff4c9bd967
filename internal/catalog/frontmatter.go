package catalog

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const headerDelimiter = "---"

var (
	errNoHeader       = errors.New("no header found")
	errUnclosedHeader = errors.New("unclosed header")
)

// splitDocument separates the delimited header block from the body. The
// header must start on the first line. A document without one returns
// errNoHeader and the whole content as body.
func splitDocument(content string) (header, body string, err error) {
	content = strings.TrimPrefix(content, "\ufeff")
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != headerDelimiter {
		return "", content, errNoHeader
	}

	endIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == headerDelimiter {
			endIdx = i
			break
		}
	}
	if endIdx == -1 {
		return "", "", errUnclosedHeader
	}

	header = strings.Join(lines[1:endIdx], "\n")
	body = strings.TrimLeft(strings.Join(lines[endIdx+1:], "\n"), "\r\n")
	return header, body, nil
}

// parseHeader decodes a header block into a string-keyed map. An empty
// block is an empty map.
func parseHeader(header string) (map[string]any, error) {
	if strings.TrimSpace(header) == "" {
		return map[string]any{}, nil
	}
	var meta map[string]any
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse YAML header: %w", err)
	}
	if meta == nil {
		return nil, errors.New("header is not a mapping")
	}
	return meta, nil
}
