package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var errNilResult = errors.New("nil result")

// ToJSON serializes results as indented JSON: a single object for one
// result, an array otherwise.
func ToJSON(results ...*ImageResult) (string, error) {
	var v any = results
	if len(results) == 1 {
		if results[0] == nil {
			return "", errNilResult
		}
		v = results[0]
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes results the same way as ToJSON.
func ToYAML(results ...*ImageResult) (string, error) {
	var v any = results
	if len(results) == 1 {
		if results[0] == nil {
			return "", errNilResult
		}
		v = results[0]
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToPlainText returns the non-blank line texts, one per line.
func ToPlainText(res *ImageResult) (string, error) {
	if res == nil {
		return "", errNilResult
	}
	out := make([]string, 0, len(res.Lines))
	for _, l := range res.Lines {
		if t := strings.TrimSpace(l.Text); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n"), nil
}
