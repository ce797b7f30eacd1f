// ABOUTME: Tests for the root command and global flag handling
// ABOUTME: Verifies flag overrides, exit-code mapping and the notice hub

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/markalston/review-insight/internal/client"
)

func TestLoadConfig_Default(t *testing.T) {
	t.Setenv("REVIEW_INSIGHT_API_URL", "")
	apiURL = ""

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "http://localhost:8080" {
		t.Errorf("expected default URL http://localhost:8080, got %s", cfg.APIURL)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("REVIEW_INSIGHT_API_URL", "http://backend.example.com")
	apiURL = ""

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "http://backend.example.com" {
		t.Errorf("expected http://backend.example.com, got %s", cfg.APIURL)
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("REVIEW_INSIGHT_API_URL", "http://backend.example.com")
	t.Setenv("REVIEW_INSIGHT_STATE_DIR", "/tmp/from-env")
	apiURL = "flag-override.example.com/"
	stateDir = "/tmp/from-flag"
	defer func() { apiURL, stateDir = "", "" }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "http://flag-override.example.com" {
		t.Errorf("expected normalized flag URL, got %s", cfg.APIURL)
	}
	if cfg.StateDir != "/tmp/from-flag" {
		t.Errorf("expected flag state dir, got %s", cfg.StateDir)
	}
}

func TestJSONOutput(t *testing.T) {
	jsonOutput = true
	defer func() { jsonOutput = false }()

	if !IsJSONOutput() {
		t.Error("expected IsJSONOutput to return true")
	}
}

func TestPrintError_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"credits", &client.APIError{Kind: client.KindInsufficientCredits}, exitFailure},
		{"quota", fmt.Errorf("wrapped: %w", &client.APIError{Kind: client.KindQuotaExceeded}), exitFailure},
		{"daily limit", &client.APIError{Kind: client.KindDailyLimit}, exitFailure},
		{"network", &client.APIError{Kind: client.KindNetwork}, exitError},
		{"plain", errors.New("boom"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := printError(&buf, tt.err); got != tt.want {
				t.Errorf("printError() = %d, want %d", got, tt.want)
			}
			if !strings.HasPrefix(buf.String(), "Error: ") {
				t.Errorf("expected Error: prefix, got %q", buf.String())
			}
		})
	}
}

func TestNotices_RoutesToTarget(t *testing.T) {
	var fallback bytes.Buffer
	n := &notices{w: &fallback}

	n.Notify("first")
	var got []string
	n.route(client.NotifierFunc(func(msg string) { got = append(got, msg) }))
	n.Notify("second")
	n.route(nil)
	n.Notify("third")

	if fallback.String() != "first\nthird\n" {
		t.Errorf("unexpected fallback output %q", fallback.String())
	}
	if len(got) != 1 || got[0] != "second" {
		t.Errorf("expected routed notice, got %v", got)
	}
}
