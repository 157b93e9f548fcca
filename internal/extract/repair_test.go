package extract

import (
	"encoding/json"
	"testing"
)

func TestRepairJSON(t *testing.T) {
	t.Run("strips trailing commas", func(t *testing.T) {
		raw := `{"type": "update", "fields": {"a": 1,}, "tags": ["x",],}`
		var out map[string]any
		if err := json.Unmarshal([]byte(RepairJSON(raw)), &out); err != nil {
			t.Fatalf("expected repaired JSON to parse, got %v", err)
		}
		if out["type"] != "update" {
			t.Fatalf("unexpected object: %#v", out)
		}
	})

	t.Run("quotes bare keys", func(t *testing.T) {
		raw := `{type: "delete", documentId: "abc123"}`
		var out map[string]any
		if err := json.Unmarshal([]byte(RepairJSON(raw)), &out); err != nil {
			t.Fatalf("expected repaired JSON to parse, got %v", err)
		}
		if out["documentId"] != "abc123" {
			t.Fatalf("unexpected object: %#v", out)
		}
	})

	t.Run("both repairs together", func(t *testing.T) {
		raw := `{type: "create", fields: {name: "Home",},}`
		var out map[string]any
		if err := json.Unmarshal([]byte(RepairJSON(raw)), &out); err != nil {
			t.Fatalf("expected repaired JSON to parse, got %v", err)
		}
	})

	t.Run("leaves valid JSON alone", func(t *testing.T) {
		raw := `{"type":"query","query":"*[_type==\"page\"]"}`
		if got := RepairJSON(raw); got != raw {
			t.Fatalf("expected unchanged, got %q", got)
		}
	})

	t.Run("hopeless input stays broken", func(t *testing.T) {
		raw := `{"type": "update", "fields": {`
		var out map[string]any
		if err := json.Unmarshal([]byte(RepairJSON(raw)), &out); err == nil {
			t.Fatalf("expected parse failure")
		}
	})
}
