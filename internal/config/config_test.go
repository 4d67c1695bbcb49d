package config

import (
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  admin_id: 42
  channel: "@gardenstock"
logging:
  level: INFO
  console: true
  file:
    enabled: false
    path: ""
  telegram:
    enabled: true
    min_level: ERROR
    rate_per_sec: 1
storage:
  driver: file
  path: ./store
watch:
  url: "https://example.com/stock"
  schedule: "30s"
  items:
    - name: "Sugar Apple"
      emoji: "🍎"
    - name: "Mythical Egg"
      emoji: "🔴"
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Telegram.AdminID != 42 {
		t.Fatalf("AdminID = %d", cfg.Telegram.AdminID)
	}
	if cfg.Telegram.Channel != "@gardenstock" {
		t.Fatalf("Channel = %q", cfg.Telegram.Channel)
	}
	if len(cfg.Watch.Items) != 2 {
		t.Fatalf("Items = %d", len(cfg.Watch.Items))
	}
	// Sections default to the stock page layout when omitted.
	if len(cfg.Watch.Sections) != 4 {
		t.Fatalf("Sections = %d, want 4 defaults", len(cfg.Watch.Sections))
	}
	notify := 0
	for _, s := range cfg.Watch.Sections {
		if s.Notify {
			notify++
		}
	}
	if notify != 3 {
		t.Fatalf("notify sections = %d, want 3", notify)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Decode("config.yaml", []byte("telegram:\n  token: x\n  bogus_knob: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "30s", want: 30 * time.Second},
		{raw: "2h30m", want: 2*time.Hour + 30*time.Minute},
		{raw: "-5s", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("watch.schedule", tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDurationField(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseDurationField(%q) = %v, %v", tt.raw, got, err)
		}
	}

	if d, err := ParseDurationOrDefault("x", "", 15*time.Second); err != nil || d != 15*time.Second {
		t.Fatalf("ParseDurationOrDefault = %v, %v", d, err)
	}
}
