// Package extract recovers structured actions from free-form assistant
// reply text. A reply may interleave prose with fenced action blocks,
// generic JSON fences, and inline markers; extraction collects every
// parseable candidate and drops the rest without failing the reply.
package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/action"
)

var (
	actionFencePattern = regexp.MustCompile("(?s)```action[ \\t]*\\n(.*?)```")
	jsonFencePattern   = regexp.MustCompile("(?s)```json[ \\t]*\\n(.*?)```")
	inlineMarkerPattern = regexp.MustCompile(`(?s)\[\[action:\s*(\{.*?\})\]\]`)
)

// Extractor scans assistant replies for action descriptors. It performs no
// network calls; the only side effect is debug logging of dropped blocks.
type Extractor struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{log: log}
}

// wireAction is the embedded wire shape. Some models flatten the payload
// into the top-level object, so payload fields are retried there when the
// nested payload is absent.
type wireAction struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Payload     json.RawMessage `json:"payload"`
}

type candidate struct {
	offset int
	raw    string
	// jsonFence candidates need a known type field to count as actions;
	// anything else inside a generic fence is data, not a command.
	generic bool
}

// Extract returns every action found in the reply, in source order, each
// with a fresh ID and pending status. Malformed blocks are repaired once
// and otherwise skipped; objects without a known action type are dropped
// silently.
func (e *Extractor) Extract(reply string) []*action.ParsedAction {
	var actions []*action.ParsedAction
	for _, cand := range candidates(reply) {
		obj, err := parseCandidate(cand.raw)
		if err != nil {
			e.log.Debug("dropping unparseable action block", zap.Error(err))
			continue
		}
		if !action.KnownType(obj.Type) {
			if !cand.generic {
				e.log.Debug("dropping action block with unknown type", zap.String("type", obj.Type))
			}
			continue
		}

		payload, err := decodePayload(cand.raw, obj)
		if err != nil {
			e.log.Debug("dropping action block with malformed payload", zap.Error(err))
			continue
		}
		actions = append(actions, action.New(action.Type(obj.Type), obj.Description, payload))
	}
	return actions
}

func candidates(reply string) []candidate {
	var out []candidate
	var fenceSpans [][2]int
	seen := make(map[int]struct{})

	addFences := func(matches [][]int, generic bool) {
		for _, m := range matches {
			if _, dup := seen[m[0]]; dup {
				continue
			}
			seen[m[0]] = struct{}{}
			fenceSpans = append(fenceSpans, [2]int{m[0], m[1]})
			out = append(out, candidate{offset: m[0], raw: reply[m[2]:m[3]], generic: generic})
		}
	}

	addFences(actionFencePattern.FindAllStringSubmatchIndex(reply, -1), false)
	addFences(jsonFencePattern.FindAllStringSubmatchIndex(reply, -1), true)

	// A marker inside a fence body is part of that fence's content, not a
	// second descriptor.
	for _, m := range inlineMarkerPattern.FindAllStringSubmatchIndex(reply, -1) {
		if _, dup := seen[m[0]]; dup {
			continue
		}
		if withinAny(fenceSpans, m[0], m[1]) {
			continue
		}
		seen[m[0]] = struct{}{}
		out = append(out, candidate{offset: m[0], raw: reply[m[2]:m[3]]})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	return out
}

func withinAny(spans [][2]int, start, end int) bool {
	for _, span := range spans {
		if start >= span[0] && end <= span[1] {
			return true
		}
	}
	return false
}

// parseCandidate attempts a strict parse, then one repair pass.
func parseCandidate(raw string) (*wireAction, error) {
	raw = strings.TrimSpace(raw)

	var obj wireAction
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return &obj, nil
	}

	repaired := RepairJSON(raw)
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

func decodePayload(raw string, obj *wireAction) (action.Payload, error) {
	var payload action.Payload

	if len(obj.Payload) > 0 {
		if err := json.Unmarshal(obj.Payload, &payload); err != nil {
			// The envelope parsed via repair; the payload needs the same pass.
			if err2 := json.Unmarshal([]byte(RepairJSON(string(obj.Payload))), &payload); err2 != nil {
				return payload, err
			}
		}
		return payload, nil
	}

	// Flattened form: payload fields live on the top-level object.
	raw = strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		if err2 := json.Unmarshal([]byte(RepairJSON(raw)), &payload); err2 != nil {
			return payload, err
		}
	}
	return payload, nil
}

// StripActionMarkup removes every recognized action syntax from the reply,
// leaving only the prose for display. Replies without action syntax pass
// through unchanged.
func StripActionMarkup(reply string) string {
	stripped := reply
	for _, m := range jsonFencePattern.FindAllString(reply, -1) {
		var obj wireAction
		body := strings.TrimSpace(jsonFencePattern.FindStringSubmatch(m)[1])
		if err := json.Unmarshal([]byte(body), &obj); err != nil {
			if err := json.Unmarshal([]byte(RepairJSON(body)), &obj); err != nil {
				continue
			}
		}
		if action.KnownType(obj.Type) {
			stripped = strings.Replace(stripped, m, "", 1)
		}
	}
	stripped = actionFencePattern.ReplaceAllString(stripped, "")
	stripped = inlineMarkerPattern.ReplaceAllString(stripped, "")
	if stripped == reply {
		return reply
	}
	return collapseBlankRuns(strings.TrimSpace(stripped))
}

// collapseBlankRuns squashes the triple newlines left behind by removed
// blocks.
func collapseBlankRuns(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
