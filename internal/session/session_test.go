package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
	"github.com/Fire-Hyun/naverPost-sub000/internal/config"
)

func testURLConfig() *config.Config {
	return &config.Config{
		HomeURL:    "https://blog.example.com",
		ComposeURL: "https://blog.example.com/GoBlogWrite.naver",
		LoginURL:   "https://nid.example.com/nidlogin.login",
	}
}

// probeMatching returns a probe that reports a match only for selector lists
// containing one of the given selectors.
func probeMatching(selectors ...string) func([]string) (string, bool) {
	return func(list []string) (string, bool) {
		for _, s := range list {
			for _, want := range selectors {
				if s == want {
					return s, true
				}
			}
		}
		return "", false
	}
}

func probeNothing([]string) (string, bool) { return "", false }

func TestEvaluateLoginCascade(t *testing.T) {
	cfg := testURLConfig()

	tests := []struct {
		name          string
		url           string
		probe         func([]string) (string, bool)
		wantLoggedIn  bool
		wantIndicator string
	}{
		{
			name:          "exact home url wins without any probe",
			url:           "https://blog.example.com/",
			probe:         probeNothing,
			wantLoggedIn:  true,
			wantIndicator: "home-url-exact",
		},
		{
			name:          "editor marker on compose url",
			url:           "https://blog.example.com/GoBlogWrite.naver?Redirect=Write",
			probe:         probeMatching("iframe[name='mainFrame']"),
			wantLoggedIn:  true,
			wantIndicator: "editor-marker:",
		},
		{
			name: "logout marker overrides logged-in marker",
			url:  "https://blog.example.com/somepage",
			probe: probeMatching(
				"a[href*='nidlogin.login']",
				"a[href*='nidlogin.logout']",
			),
			wantLoggedIn:  false,
			wantIndicator: "logout-marker:",
		},
		{
			name:          "logged-in marker alone",
			url:           "https://blog.example.com/somepage",
			probe:         probeMatching("a[href*='nidlogin.logout']"),
			wantLoggedIn:  true,
			wantIndicator: "login-marker:",
		},
		{
			name:          "login page url means logged out",
			url:           "https://nid.example.com/nidlogin.login?mode=form",
			probe:         probeNothing,
			wantLoggedIn:  false,
			wantIndicator: "login-page-url",
		},
		{
			name:          "no positive signal defaults to logged out",
			url:           "https://blog.example.com/unknown",
			probe:         probeNothing,
			wantLoggedIn:  false,
			wantIndicator: "no-positive-signal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := evaluateLogin(tt.url, cfg, tt.probe)
			if status.LoggedIn != tt.wantLoggedIn {
				t.Fatalf("LoggedIn = %v, want %v (indicators %v)",
					status.LoggedIn, tt.wantLoggedIn, status.MatchedIndicators)
			}
			if len(status.MatchedIndicators) != 1 {
				t.Fatalf("MatchedIndicators = %v, want exactly one", status.MatchedIndicators)
			}
			if !strings.HasPrefix(status.MatchedIndicators[0], tt.wantIndicator) {
				t.Fatalf("indicator = %q, want prefix %q", status.MatchedIndicators[0], tt.wantIndicator)
			}
		})
	}
}

func TestEvaluateLoginEditorMarkerRequiresComposeURL(t *testing.T) {
	cfg := testURLConfig()

	// An editable region on a non-compose page must not count as logged in.
	status := evaluateLogin("https://blog.example.com/view/123",
		cfg, probeMatching("[contenteditable=true]"))
	if status.LoggedIn {
		t.Fatalf("LoggedIn = true for editor marker off the compose page, indicators %v",
			status.MatchedIndicators)
	}
}

func TestForceKillLeavesSessionCallsFailingCleanly(t *testing.T) {
	s := New(testURLConfig())
	s.client = cdp.NewClient("", "", time.Second)

	// The watchdog fires from its own goroutine while the pipeline may still
	// be driving the session: subsequent calls must error, never panic.
	s.ForceKill()
	s.ForceKill() // idempotent

	if _, err := s.CurrentURL(context.Background()); err == nil {
		t.Fatal("CurrentURL = nil error after force kill, want not-connected error")
	}
	if _, err := s.EnsureLoggedIn(context.Background()); err == nil {
		t.Fatal("EnsureLoggedIn = nil error after force kill, want not-connected error")
	}

	s.Close() // teardown after a force kill must also be safe
}

func TestTrimURL(t *testing.T) {
	if got := trimURL(" https://blog.example.com/ "); got != "https://blog.example.com" {
		t.Fatalf("trimURL = %q", got)
	}
}
