package content

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step in a field path. At most one of Key or Index is set;
// Index is -1 when absent.
type Segment struct {
	Field string
	Key   string
	Index int
}

// HasKey reports whether the segment selects an array element by key
// predicate.
func (s Segment) HasKey() bool { return s.Key != "" }

// HasIndex reports whether the segment selects an array element by numeric
// position.
func (s Segment) HasIndex() bool { return s.Index >= 0 }

// Path is a parsed field-path selector such as
// children[key=="4b5c6d7e8f12"].rows[key=="a1b2c3d4e5f6"].columns.
type Path []Segment

// ParsePath parses a dotted field path. Array selectors use either a
// [key=="value"] predicate or a bare integer index; the validator decides
// which of those are acceptable, the parser accepts both.
func ParsePath(raw string) (Path, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty field path")
	}

	var path Path
	for _, part := range splitSegments(raw) {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, fmt.Errorf("parsing field path %q: %w", raw, err)
		}
		path = append(path, seg)
	}
	return path, nil
}

// splitSegments splits on '.' outside of bracketed selectors, so that
// quoted predicate values may contain dots.
func splitSegments(raw string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range raw {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case '.':
			if depth == 0 {
				parts = append(parts, raw[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, raw[start:])
	return parts
}

func parseSegment(part string) (Segment, error) {
	seg := Segment{Index: -1}

	open := strings.IndexByte(part, '[')
	if open == -1 {
		seg.Field = part
		if seg.Field == "" {
			return seg, fmt.Errorf("empty segment")
		}
		return seg, nil
	}

	seg.Field = part[:open]
	if seg.Field == "" {
		return seg, fmt.Errorf("selector without field name in %q", part)
	}
	if !strings.HasSuffix(part, "]") {
		return seg, fmt.Errorf("unterminated selector in %q", part)
	}

	sel := strings.TrimSpace(part[open+1 : len(part)-1])
	if sel == "" {
		return seg, fmt.Errorf("empty selector in %q", part)
	}

	if n, err := strconv.Atoi(sel); err == nil {
		if n < 0 {
			return seg, fmt.Errorf("negative index in %q", part)
		}
		seg.Index = n
		return seg, nil
	}

	value, ok := parseKeyPredicate(sel)
	if !ok {
		return seg, fmt.Errorf("unsupported selector %q, expected [key==\"...\"] or an integer", sel)
	}
	seg.Key = value
	return seg, nil
}

func parseKeyPredicate(sel string) (string, bool) {
	rest, ok := strings.CutPrefix(sel, "key")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	rest, ok = strings.CutPrefix(rest, "==")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", false
	}
	value := rest[1 : len(rest)-1]
	if value == "" {
		return "", false
	}
	return value, true
}

// HasNumericIndex reports whether any segment addresses an array element by
// position rather than by key.
func (p Path) HasNumericIndex() bool {
	for _, seg := range p {
		if seg.HasIndex() {
			return true
		}
	}
	return false
}

// Keys returns every key-predicate value along the path, in order.
func (p Path) Keys() []string {
	var keys []string
	for _, seg := range p {
		if seg.HasKey() {
			keys = append(keys, seg.Key)
		}
	}
	return keys
}

func (p Path) String() string {
	var sb strings.Builder
	for i, seg := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(seg.Field)
		switch {
		case seg.HasKey():
			fmt.Fprintf(&sb, "[key==%q]", seg.Key)
		case seg.HasIndex():
			fmt.Fprintf(&sb, "[%d]", seg.Index)
		}
	}
	return sb.String()
}

// Set writes value at path inside doc. Intermediate segments must already
// exist; arrays are addressed by the segment selector. When the final
// segment carries a selector the matching element is replaced wholesale.
func Set(doc map[string]any, raw string, value any) error {
	path, err := ParsePath(raw)
	if err != nil {
		return err
	}

	cur := doc
	for i, seg := range path {
		last := i == len(path)-1

		if last && !seg.HasKey() && !seg.HasIndex() {
			cur[seg.Field] = value
			return nil
		}

		arr, idx, err := resolveElement(cur, seg)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", Path(path[:i+1]).String(), err)
		}

		if last {
			arr[idx] = value
			return nil
		}

		next, ok := arr[idx].(map[string]any)
		if !ok {
			return fmt.Errorf("resolving %s: element is not an object", Path(path[:i+1]).String())
		}
		cur = next
	}
	return nil
}

// Get returns the value at path inside doc, reporting whether it resolved.
func Get(doc map[string]any, raw string) (any, bool) {
	path, err := ParsePath(raw)
	if err != nil {
		return nil, false
	}

	cur := doc
	for i, seg := range path {
		last := i == len(path)-1

		if !seg.HasKey() && !seg.HasIndex() {
			v, ok := cur[seg.Field]
			if !ok {
				return nil, false
			}
			if last {
				return v, true
			}
			next, ok := v.(map[string]any)
			if !ok {
				return nil, false
			}
			cur = next
			continue
		}

		arr, idx, err := resolveElement(cur, seg)
		if err != nil {
			return nil, false
		}
		if last {
			return arr[idx], true
		}
		next, ok := arr[idx].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// AppendAt appends items to the array at path, creating the array if the
// field is absent. The final segment must not carry a selector.
func AppendAt(doc map[string]any, raw string, items ...any) error {
	path, err := ParsePath(raw)
	if err != nil {
		return err
	}
	lastSeg := path[len(path)-1]
	if lastSeg.HasKey() || lastSeg.HasIndex() {
		return fmt.Errorf("append target %q must be an array field, not an element", raw)
	}

	cur := doc
	for i, seg := range path[:len(path)-1] {
		if !seg.HasKey() && !seg.HasIndex() {
			next, ok := cur[seg.Field].(map[string]any)
			if !ok {
				return fmt.Errorf("resolving %s: not an object", Path(path[:i+1]).String())
			}
			cur = next
			continue
		}
		arr, idx, err := resolveElement(cur, seg)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", Path(path[:i+1]).String(), err)
		}
		next, ok := arr[idx].(map[string]any)
		if !ok {
			return fmt.Errorf("resolving %s: element is not an object", Path(path[:i+1]).String())
		}
		cur = next
	}

	existing, _ := cur[lastSeg.Field].([]any)
	cur[lastSeg.Field] = append(existing, items...)
	return nil
}

// resolveElement locates the array element addressed by a segment with a
// key or index selector.
func resolveElement(cur map[string]any, seg Segment) ([]any, int, error) {
	arr, ok := cur[seg.Field].([]any)
	if !ok {
		return nil, 0, fmt.Errorf("field %q is not an array", seg.Field)
	}

	if seg.HasIndex() {
		if seg.Index >= len(arr) {
			return nil, 0, fmt.Errorf("index %d out of range (len %d)", seg.Index, len(arr))
		}
		return arr, seg.Index, nil
	}

	for i, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if key, _ := m["key"].(string); key == seg.Key {
			return arr, i, nil
		}
	}
	return nil, 0, fmt.Errorf("no element with key %q", seg.Key)
}
