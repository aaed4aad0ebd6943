package slug

import (
	"strings"
	"testing"
)

func TestFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"tools_inventory.csv", "tools-inventory"},
		{"exports/AI Tools (2024).csv", "ai-tools-2024"},
		{"/data/KI-Werkzeuge Übersicht.csv", "ki-werkzeuge-uebersicht"},
		{"inventory.backup.csv", "inventory-backup"},
		{"---.csv", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FromFilename(tt.path); got != tt.want {
				t.Errorf("FromFilename(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestFromToolName(t *testing.T) {
	tests := []struct {
		name string
		tool string
		line int
		want string
	}{
		{"plain", "ChatGPT", 1, "chatgpt"},
		{"version", "Claude 3.5 Sonnet", 2, "claude-3-5-sonnet"},
		{"german", "Müller KI-Assistent für Straßen", 3, "mueller-ki-assistent-fuer-strassen"},
		{"accents", "Café Génie", 4, "cafe-genie"},
		{"apostrophe", "McDonald's Menu AI", 5, "mcdonalds-menu-ai"},
		{"domain", "notion.so / Notion AI", 6, "notion-so-notion-ai"},
		{"empty", "", 7, "tool-7"},
		{"only symbols", "???", 8, "tool-8"},
		{"non latin", "文心一言", 9, "tool-9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromToolName(tt.tool, tt.line); got != tt.want {
				t.Errorf("FromToolName(%q, %d) = %q, want %q", tt.tool, tt.line, got, tt.want)
			}
		})
	}
}

func TestFromToolNameTruncates(t *testing.T) {
	name := strings.Repeat("Enterprise Assistant ", 10)
	got := FromToolName(name, 1)

	if len(got) > MaxLength {
		t.Errorf("length = %d, want at most %d", len(got), MaxLength)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("truncated slug ends with a hyphen: %q", got)
	}
	if !strings.HasPrefix(got, "enterprise-assistant-enterprise") {
		t.Errorf("unexpected prefix: %q", got)
	}
}
