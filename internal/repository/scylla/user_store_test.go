package scylla

import (
	"encoding/json"
	"testing"
)

func TestMergePreferencesKeepsEarlierKeys(t *testing.T) {
	stored := map[string]interface{}{"theme": "dark", "digest": "weekly"}
	merged := mergePreferences(stored, map[string]interface{}{"newsletter": "yes", "theme": "light"})

	if merged["digest"] != "weekly" {
		t.Errorf("digest = %v, want weekly", merged["digest"])
	}
	if merged["newsletter"] != "yes" {
		t.Errorf("newsletter = %v, want yes", merged["newsletter"])
	}
	if merged["theme"] != "light" {
		t.Errorf("theme = %v, want light (supplied key should win)", merged["theme"])
	}
	if stored["theme"] != "dark" {
		t.Errorf("stored map mutated: theme = %v", stored["theme"])
	}
}

func TestMergePreferencesWithNoStoredMap(t *testing.T) {
	merged := mergePreferences(nil, map[string]interface{}{"theme": "dark"})
	if len(merged) != 1 || merged["theme"] != "dark" {
		t.Errorf("merged = %v, want map with single theme key", merged)
	}
}

func TestEncodePreferencesEmptyMap(t *testing.T) {
	out, err := encodePreferences(nil)
	if err != nil {
		t.Fatalf("encodePreferences(nil): %v", err)
	}
	if out != "" {
		t.Errorf("encodePreferences(nil) = %q, want empty string", out)
	}
}

func TestEncodePreferencesProducesJSON(t *testing.T) {
	out, err := encodePreferences(map[string]interface{}{"theme": "dark"})
	if err != nil {
		t.Fatalf("encodePreferences: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["theme"] != "dark" {
		t.Errorf("decoded theme = %v, want dark", decoded["theme"])
	}
}
