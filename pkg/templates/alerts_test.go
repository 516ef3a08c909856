package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAlertTemplate_Signal(t *testing.T) {
	registry := Get()

	data := map[string]interface{}{
		"Icon":     "🚨",
		"Symbol":   "BTCUSDT",
		"Interval": "4h",
		"Kind":     "breakout",
		"Message":  "BTCUSDT resistance_breakout at 43250.00 (2.1x volume)",
		"Price":    "43,250.00",
	}

	output, err := registry.Render("alerts/signal", data)
	if err != nil {
		t.Fatalf("Failed to render alert template: %v", err)
	}

	for _, want := range []string{"🚨", "*BTCUSDT*", "[4h]", "breakout", "Price: `43,250.00`"} {
		if !strings.Contains(output, want) {
			t.Errorf("Missing %q in rendered alert:\n%s", want, output)
		}
	}

	if strings.Contains(output, "Spotted") {
		t.Errorf("Age line should be omitted when empty:\n%s", output)
	}
}

func TestAlertTemplate_SignalWithAge(t *testing.T) {
	registry := Get()

	data := map[string]interface{}{
		"Icon":     "⚠️",
		"Symbol":   "ETHUSDT",
		"Interval": "1h",
		"Kind":     "phase change",
		"Message":  "ETHUSDT cycle phase moved markup -> distribution",
		"Age":      "5 minutes ago",
	}

	output, err := registry.Render("alerts/signal", data)
	if err != nil {
		t.Fatalf("Failed to render alert template: %v", err)
	}

	if !strings.Contains(output, "Spotted 5 minutes ago") {
		t.Errorf("Missing age line in rendered alert:\n%s", output)
	}
	if strings.Contains(output, "Price:") {
		t.Errorf("Price line should be omitted when empty:\n%s", output)
	}
}

func TestAlertTemplate_Startup(t *testing.T) {
	registry := Get()

	output, err := registry.Render("alerts/startup", map[string]interface{}{
		"App":          "delphi",
		"Env":          "production",
		"Symbols":      25,
		"ScanInterval": 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("Failed to render startup template: %v", err)
	}

	for _, want := range []string{"*delphi*", "production", "25 symbols", "Scan interval: 5m"} {
		if !strings.Contains(output, want) {
			t.Errorf("Missing %q in rendered startup message:\n%s", want, output)
		}
	}
}

func TestTemplateFuncs(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base)
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}

	cases := []struct {
		name     string
		template string
		data     interface{}
		want     string
	}{
		{"duration_hours", `{{duration .D}}`, map[string]interface{}{"D": 4 * time.Hour}, "4.0h"},
		{"duration_seconds", `{{duration .D}}`, map[string]interface{}{"D": 30 * time.Second}, "30s"},
		{"percent", `{{percent .V}}`, map[string]interface{}{"V": 0.153}, "15.3%"},
		{"bold", `{{bold .S}}`, map[string]interface{}{"S": "BTCUSDT"}, "*BTCUSDT*"},
		{"safe_text", `{{safeText .S}}`, map[string]interface{}{"S": "a_b"}, `a\_b`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(base, tc.name+".tmpl")
			if err := os.WriteFile(path, []byte(tc.template), 0o644); err != nil {
				t.Fatalf("write template: %v", err)
			}

			got, err := reg.Render(tc.name, tc.data)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAlertTemplate_MissingTemplate(t *testing.T) {
	_, err := Get().Render("alerts/nonexistent", nil)
	if err == nil {
		t.Error("Expected error for nonexistent template")
	}
}
