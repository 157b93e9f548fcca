package store

import (
	"fmt"
	"strings"
)

// The engine treats query strings as opaque, but the shipped backends
// understand a small filter subset so query actions work end to end:
//
//	*
//	*[_type=="page"]
//	*[_type=="page" && slug=="about"]
//	*[_id==$id]   with params {"id": "..."}
//
// Only equality conditions joined by && are supported. Anything else is a
// parse error surfaced to the operator.

// Filter is a parsed query filter.
type Filter struct {
	conds []condition
}

type condition struct {
	field string
	value string
}

// ParseQuery parses the filter subset. Params substitute $name references
// in condition values.
func ParseQuery(query string, params map[string]any) (*Filter, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("empty query")
	}
	if q == "*" {
		return &Filter{}, nil
	}

	if !strings.HasPrefix(q, "*[") || !strings.HasSuffix(q, "]") {
		return nil, fmt.Errorf("unsupported query %q: expected *[...] filter", query)
	}

	body := q[2 : len(q)-1]
	f := &Filter{}
	for _, clause := range strings.Split(body, "&&") {
		cond, err := parseCondition(strings.TrimSpace(clause), params)
		if err != nil {
			return nil, fmt.Errorf("unsupported query %q: %w", query, err)
		}
		f.conds = append(f.conds, cond)
	}
	return f, nil
}

func parseCondition(clause string, params map[string]any) (condition, error) {
	parts := strings.SplitN(clause, "==", 2)
	if len(parts) != 2 {
		return condition{}, fmt.Errorf("condition %q is not an equality", clause)
	}

	field := strings.TrimSpace(parts[0])
	if field == "" {
		return condition{}, fmt.Errorf("condition %q has no field", clause)
	}

	rawValue := strings.TrimSpace(parts[1])
	switch {
	case strings.HasPrefix(rawValue, `"`) && strings.HasSuffix(rawValue, `"`) && len(rawValue) >= 2:
		return condition{field: field, value: rawValue[1 : len(rawValue)-1]}, nil
	case strings.HasPrefix(rawValue, "$"):
		name := rawValue[1:]
		v, ok := params[name]
		if !ok {
			return condition{}, fmt.Errorf("missing parameter $%s", name)
		}
		s, ok := v.(string)
		if !ok {
			return condition{}, fmt.Errorf("parameter $%s must be a string", name)
		}
		return condition{field: field, value: s}, nil
	default:
		return condition{}, fmt.Errorf("condition value %q must be a quoted string or $param", rawValue)
	}
}

// DocType returns the _type equality value when the filter pins one, for
// backends that can push it into their query plan.
func (f *Filter) DocType() string {
	for _, c := range f.conds {
		if c.field == "_type" {
			return c.value
		}
	}
	return ""
}

// Matches evaluates the filter against a document.
func (f *Filter) Matches(doc map[string]any) bool {
	for _, c := range f.conds {
		got, _ := doc[c.field].(string)
		if got != c.value {
			return false
		}
	}
	return true
}
