package models

import (
	"encoding/json"
	"testing"
)

// TestRepairResponseJSONSerialization verifies that changes are omitted when nothing changed
func TestRepairResponseJSONSerialization(t *testing.T) {
	changed := &RepairResponse{
		ID:      "run-1",
		Tool:    "Acme",
		Changed: true,
		Summary: "Updated 1 field(s): Updated Privacy/Legal Link to https://acme.com/privacy",
		Changes: []FieldChange{{Field: "Privacy/Legal Link", OldValue: "https://acme.com/404", NewValue: "https://acme.com/privacy"}},
	}

	jsonBytes, err := json.Marshal(changed)
	if err != nil {
		t.Fatalf("Failed to marshal repair response: %v", err)
	}

	var unmarshaled map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
	changes, ok := unmarshaled["changes"].([]interface{})
	if !ok || len(changes) != 1 {
		t.Fatalf("expected one change in JSON, got %v", unmarshaled["changes"])
	}
	change := changes[0].(map[string]interface{})
	if change["old_value"] != "https://acme.com/404" || change["new_value"] != "https://acme.com/privacy" {
		t.Errorf("unexpected change values: %v", change)
	}

	unchanged := &RepairResponse{ID: "run-2", Tool: "Acme", Summary: "All links valid, no changes needed."}
	jsonBytes2, err := json.Marshal(unchanged)
	if err != nil {
		t.Fatalf("Failed to marshal repair response: %v", err)
	}

	var unmarshaled2 map[string]interface{}
	if err := json.Unmarshal(jsonBytes2, &unmarshaled2); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
	if _, exists := unmarshaled2["changes"]; exists {
		t.Error("changes field should be omitted when empty")
	}
}

// TestValidateResponseOmitsStatusCode verifies transport failures carry no status code
func TestValidateResponseOmitsStatusCode(t *testing.T) {
	jsonBytes, err := json.Marshal(ValidateResponse{URL: "https://nowhere.invalid", Label: "Connection Error", Class: "connection_error"})
	if err != nil {
		t.Fatalf("Failed to marshal validate response: %v", err)
	}

	var unmarshaled map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
	if _, exists := unmarshaled["status_code"]; exists {
		t.Error("status_code should be omitted when zero")
	}
	if unmarshaled["reachable"] != false {
		t.Error("reachable should always be present")
	}
}
