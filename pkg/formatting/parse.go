package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when content holds no decodable JSON.
var ErrParseFailed = errors.New("failed to parse response")

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Parse decodes content as JSON into T. It falls back to the body of a
// markdown code fence, then to the outermost {...} span.
func Parse[T any](content string) (T, error) {
	var out T
	content = strings.TrimSpace(content)

	candidates := []string{content}
	if m := fencePattern.FindStringSubmatch(content); len(m) == 2 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		candidates = append(candidates, content[start:end+1])
	}

	for _, c := range candidates {
		if err := json.Unmarshal([]byte(c), &out); err == nil {
			return out, nil
		}
	}

	return out, fmt.Errorf("%w: %.200s", ErrParseFailed, content)
}
