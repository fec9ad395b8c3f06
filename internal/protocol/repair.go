package protocol

import (
	"encoding/json"
	"strings"
)

// A repairer attempts one heuristic fix of a frame that failed strict parsing.
// Repairers are pure: they never mutate shared state and either return a
// parsed object or report false.
type repairer struct {
	name string
	fn   func(text string) (map[string]any, bool)
}

// repairChain lists the heuristics in the order they are tried. The first one
// that yields an object wins.
var repairChain = []repairer{
	{"wrap-action-token", wrapActionToken},
	{"balance-braces", balanceBraces},
	{"unquote", unquote},
	{"wrap-key-value", wrapKeyValue},
}

// Repair runs the repair chain over text and returns the first object any
// heuristic manages to parse.
func Repair(text string) (map[string]any, bool) {
	obj, _, ok := repairWithName(text)
	return obj, ok
}

func repairWithName(text string) (map[string]any, string, bool) {
	for _, r := range repairChain {
		if obj, ok := r.fn(text); ok {
			return obj, r.name, true
		}
	}
	return nil, "", false
}

// wrapActionToken handles `"action":"ping"` sent without the enclosing braces.
func wrapActionToken(text string) (map[string]any, bool) {
	if strings.HasPrefix(text, "{") || !strings.Contains(text, "action") {
		return nil, false
	}
	return parseObject("{" + text + "}")
}

// balanceBraces appends the closing braces a truncated frame is missing.
func balanceBraces(text string) (map[string]any, bool) {
	missing := strings.Count(text, "{") - strings.Count(text, "}")
	if missing <= 0 {
		return nil, false
	}
	return parseObject(text + strings.Repeat("}", missing))
}

// unquote handles frames wrapped in one pair of matching quotes, including a
// JSON string literal whose content is itself a JSON object.
func unquote(text string) (map[string]any, bool) {
	if len(text) < 2 {
		return nil, false
	}
	q := text[0]
	if (q != '"' && q != '\'') || text[len(text)-1] != q {
		return nil, false
	}

	if q == '"' {
		var inner string
		if err := json.Unmarshal([]byte(text), &inner); err == nil {
			if obj, ok := parseObject(strings.TrimSpace(inner)); ok {
				return obj, true
			}
		}
	}

	inner := strings.TrimSpace(text[1 : len(text)-1])
	if obj, ok := parseObject(inner); ok {
		return obj, true
	}
	return parseObject("{" + inner + "}")
}

// wrapKeyValue handles bare `"key": value` pairs without braces.
func wrapKeyValue(text string) (map[string]any, bool) {
	if strings.HasPrefix(text, "{") || !strings.Contains(text, ":") {
		return nil, false
	}
	if !strings.ContainsAny(text, `"'`) {
		return nil, false
	}
	return parseObject("{" + text + "}")
}
