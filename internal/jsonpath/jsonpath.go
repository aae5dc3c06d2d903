package jsonpath

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type step struct {
	key  string
	idxs []int
}

// Path is a compiled dotted path such as "results[0].alternatives[0].transcript".
type Path struct {
	raw   string
	steps []step
}

// Compile parses path. An empty path compiles to a Path that never matches,
// leaving only the fallbacks of ExtractText.
func Compile(path string) (Path, error) {
	p := Path{raw: path}
	if path == "" {
		return p, nil
	}
	for _, part := range strings.Split(path, ".") {
		key, idxs, err := parseKeyAndIndexes(part)
		if err != nil {
			return Path{}, fmt.Errorf("text path %q: %w", path, err)
		}
		p.steps = append(p.steps, step{key: key, idxs: idxs})
	}
	return p, nil
}

// MustCompile is Compile for constant paths.
func MustCompile(path string) Path {
	p, err := Compile(path)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return p.raw }

// Lookup walks root and returns the scalar at the end of the path as text.
func (p Path) Lookup(root interface{}) (string, bool) {
	if len(p.steps) == 0 {
		return "", false
	}
	cur := root
	for _, s := range p.steps {
		if s.key != "" {
			m, ok := cur.(map[string]interface{})
			if !ok {
				return "", false
			}
			next, exists := m[s.key]
			if !exists {
				return "", false
			}
			cur = next
		}
		for _, idx := range s.idxs {
			arr, ok := cur.([]interface{})
			if !ok || idx < 0 || idx >= len(arr) {
				return "", false
			}
			cur = arr[idx]
		}
	}
	return scalar(cur)
}

func scalar(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s)), true
		}
		return fmt.Sprintf("%v", s), true
	case bool:
		return fmt.Sprintf("%v", s), true
	}
	return "", false
}

// ExtractText decodes a JSON body and returns the text at p. When p does not
// match it falls back to a top-level "text" field. A body that is not JSON is
// reported as an error.
func ExtractText(body []byte, p Path) (string, error) {
	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if v, ok := p.Lookup(root); ok {
		return v, nil
	}
	if m, ok := root.(map[string]interface{}); ok {
		if v, ok := scalar(m["text"]); ok {
			return v, nil
		}
	}
	return "", nil
}

// parseKeyAndIndexes parses a token like "foo[0][1]" or "[0]" or "bar" into base key and indexes.
func parseKeyAndIndexes(token string) (string, []int, error) {
	if token == "" {
		return "", nil, fmt.Errorf("empty token")
	}
	idxs := []int{}
	br := strings.Index(token, "[")
	if br == -1 {
		return token, idxs, nil
	}
	key := token[:br]
	rest := token[br:]
	for len(rest) > 0 {
		if !strings.HasPrefix(rest, "[") {
			return "", nil, fmt.Errorf("invalid index syntax in %s", token)
		}
		closePos := strings.Index(rest, "]")
		if closePos == -1 {
			return "", nil, fmt.Errorf("missing closing ] in %s", token)
		}
		numStr := rest[1:closePos]
		if numStr == "" {
			return "", nil, fmt.Errorf("empty index in %s", token)
		}
		n, err := strconv.Atoi(numStr)
		if err != nil {
			return "", nil, fmt.Errorf("invalid index '%s' in %s", numStr, token)
		}
		idxs = append(idxs, n)
		rest = rest[closePos+1:]
	}
	return key, idxs, nil
}
