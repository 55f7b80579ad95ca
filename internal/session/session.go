// Package session owns the browser lifecycle for one publishing run: profile
// locking, browser launch, CDP attachment, login-state detection and
// navigation to the compose page.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/browser"
	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
	"github.com/Fire-Hyun/naverPost-sub000/internal/config"
	"github.com/Fire-Hyun/naverPost-sub000/internal/editor"
)

// DOM markers for login-state detection. Kept apart from the editor selector
// catalog: these belong to the portal shell, not the editor.
var (
	loggedOutMarkers = []string{
		"a[href*='nidlogin.login']",
		".MyView-module__link_login",
		"[class*='login_button']",
	}
	loggedInMarkers = []string{
		"a[href*='nidlogin.logout']",
		".MyView-module__my_info",
		"[class*='logout']",
		".MyView-module__desc_email",
	}
	editorMarkers = []string{
		"iframe[name='mainFrame']",
		".se-container",
		"[contenteditable=true]",
	}
	captchaMarkers = []string{
		"#captcha", "img[alt*='captcha']", "img[src*='captcha']",
		"[class*='captcha']", "#recaptcha", "iframe[src*='recaptcha']",
	}
)

// LoginStatus is the outcome of the login-detection cascade, including which
// indicators matched so operators can see why a verdict was reached.
type LoginStatus struct {
	LoggedIn          bool     `json:"logged_in"`
	URL               string   `json:"url"`
	MatchedIndicators []string `json:"matched_indicators"`
}

// Session is an exclusive browser session bound to one profile directory.
type Session struct {
	cfg      *config.Config
	lock     *browser.ProfileLock
	launcher *browser.Launcher
	client   *cdp.Client

	mu           sync.Mutex
	lastActivity time.Time
}

// New builds an unopened session for the given configuration.
func New(cfg *config.Config) *Session {
	return &Session{cfg: cfg}
}

// Open acquires the profile lock, launches the browser and attaches CDP.
// On any failure everything acquired so far is released.
func (s *Session) Open(ctx context.Context) error {
	lock, err := browser.AcquireProfileLock(s.cfg.ProfileDir)
	if err != nil {
		return cdp.NewError(cdp.CodeSession, "profile already in use", err)
	}
	s.lock = lock

	s.launcher = browser.NewLauncher(browser.Config{
		CDPAddress: s.cfg.CDPAddress,
		CDPPort:    s.cfg.CDPPort,
		StartURL:   s.cfg.HomeURL,
		ProfileDir: s.cfg.ProfileDir,
		Headless:   s.cfg.Headless,
		WindowSize: s.cfg.WindowSize,
	})
	if err := s.launcher.Launch(ctx); err != nil {
		s.lock.Release()
		s.lock = nil
		return cdp.NewError(cdp.CodeSession, "browser launch failed", err)
	}

	evalTimeout := time.Duration(s.cfg.StageTimeoutSec) * time.Second
	s.client = cdp.NewClient(s.cfg.CDPURL(), "", evalTimeout)
	if err := s.connectWithRetry(ctx); err != nil {
		s.teardown()
		return err
	}

	slog.Info("session opened", "profile", s.cfg.ProfileDir, "cdp", s.cfg.CDPURL())
	return nil
}

// connectWithRetry absorbs the window where the browser accepts CDP
// connections but has not created its first page target yet.
func (s *Session) connectWithRetry(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 5; i++ {
		if lastErr = s.client.Connect(ctx); lastErr == nil {
			return nil
		}
		slog.Debug("cdp connect attempt failed", "attempt", i+1, "error", lastErr)
		select {
		case <-ctx.Done():
			return cdp.NewError(cdp.CodeSession, "session open canceled", ctx.Err())
		case <-time.After(time.Second):
		}
	}
	return cdp.NewError(cdp.CodeSession, "could not attach to browser page", lastErr)
}

// Client exposes the attached CDP client.
func (s *Session) Client() *cdp.Client { return s.client }

// Driver exposes the attached client as the editor's capability surface.
func (s *Session) Driver() editor.Driver { return s.client }

// touch records a successful interaction with the page. The watchdog and the
// evidence report read this to tell an idle session from a hung one.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the last successful page interaction.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// CurrentURL reads location.href from the attached page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	body := `return JSON.stringify({ok:true,data:location.href});`
	if err := s.client.Eval(ctx, cdp.WrapEval(body), &url); err != nil {
		return "", err
	}
	s.touch()
	return url, nil
}

// EnsureLoggedIn runs the login-detection cascade against the live page.
func (s *Session) EnsureLoggedIn(ctx context.Context) (LoginStatus, error) {
	url, err := s.CurrentURL(ctx)
	if err != nil {
		return LoginStatus{}, err
	}
	probe := func(selectors []string) (string, bool) {
		sel, found, err := s.firstVisibleMarker(ctx, selectors)
		if err != nil {
			slog.Debug("login marker probe failed", "error", err)
			return "", false
		}
		return sel, found
	}
	return evaluateLogin(url, s.cfg, probe), nil
}

// evaluateLogin is the login-detection cascade: exact home URL, editor
// surface on the compose URL, logout DOM markers (immediate logged-out,
// overriding the weaker marker checks below), logged-in DOM markers, then
// login-page URL. No positive signal means logged out, never logged in.
// probe reports the first visible marker from a selector list.
func evaluateLogin(url string, cfg *config.Config, probe func([]string) (string, bool)) LoginStatus {
	status := LoginStatus{URL: url}

	if trimURL(url) == trimURL(cfg.HomeURL) {
		status.LoggedIn = true
		status.MatchedIndicators = append(status.MatchedIndicators, "home-url-exact")
		return status
	}

	if strings.Contains(url, trimURL(cfg.ComposeURL)) || strings.Contains(url, "PostWriteForm") {
		if sel, found := probe(editorMarkers); found {
			status.LoggedIn = true
			status.MatchedIndicators = append(status.MatchedIndicators, "editor-marker:"+sel)
			return status
		}
	}

	if sel, found := probe(loggedOutMarkers); found {
		status.MatchedIndicators = append(status.MatchedIndicators, "logout-marker:"+sel)
		return status
	}

	if sel, found := probe(loggedInMarkers); found {
		status.LoggedIn = true
		status.MatchedIndicators = append(status.MatchedIndicators, "login-marker:"+sel)
		return status
	}

	if strings.Contains(url, "nidlogin") || strings.Contains(url, trimURL(cfg.LoginURL)) {
		status.MatchedIndicators = append(status.MatchedIndicators, "login-page-url")
		return status
	}

	status.MatchedIndicators = append(status.MatchedIndicators, "no-positive-signal")
	return status
}

func trimURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}

// firstVisibleMarker returns the first selector from the list that matches a
// rendered element on the current page.
func (s *Session) firstVisibleMarker(ctx context.Context, selectors []string) (string, bool, error) {
	var matched string
	body := `var selectors = ` + cdp.JSJSON(selectors) + `;
for (var i = 0; i < selectors.length; i++) {
  var el = document.querySelector(selectors[i]);
  if (!el) continue;
  var r = el.getBoundingClientRect();
  if (r.width === 0 && r.height === 0) continue;
  return JSON.stringify({ok:true,data:selectors[i]});
}
return JSON.stringify({ok:true,data:""});`
	if err := s.client.Eval(ctx, cdp.WrapEval(body), &matched); err != nil {
		return "", false, err
	}
	s.touch()
	return matched, matched != "", nil
}

// DetectCaptcha reports whether a CAPTCHA challenge is visible on the page.
func (s *Session) DetectCaptcha(ctx context.Context) bool {
	_, found, err := s.firstVisibleMarker(ctx, captchaMarkers)
	if err != nil {
		slog.Debug("captcha probe failed", "error", err)
		return false
	}
	return found
}

// NavigateToEditor drives the page to the compose URL and waits for the
// document to settle.
func (s *Session) NavigateToEditor(ctx context.Context) error {
	if err := s.client.Navigate(ctx, s.cfg.ComposeURL); err != nil {
		return err
	}
	return s.waitForLoad(ctx, 20*time.Second)
}

// Relogin navigates through the portal home so the persisted profile cookies
// can refresh the session, then re-runs detection. This is the single
// automated recovery for an expired login; an actual credential prompt (or a
// CAPTCHA) cannot be solved here and surfaces as still-logged-out.
func (s *Session) Relogin(ctx context.Context) (LoginStatus, error) {
	slog.Info("relogin: refreshing session via portal home")
	if err := s.client.Navigate(ctx, s.cfg.HomeURL); err != nil {
		return LoginStatus{}, err
	}
	if err := s.waitForLoad(ctx, 15*time.Second); err != nil {
		return LoginStatus{}, err
	}
	return s.EnsureLoggedIn(ctx)
}

// waitForLoad awaits document readiness, re-arming until the window elapses.
// Each probe rides the page's load event instead of busy-polling readyState;
// the embedded bounce keeps one eval from outliving a navigation that tore
// down its execution context.
func (s *Session) waitForLoad(ctx context.Context, window time.Duration) error {
	deadline := time.Now().Add(window)
	body := `if (document.readyState === "complete") { return JSON.stringify({ok:true,data:"complete"}); }
return await new Promise(function(resolve){
  window.addEventListener("load", function(){ resolve(JSON.stringify({ok:true,data:"complete"})); }, {once:true});
  setTimeout(function(){ resolve(JSON.stringify({ok:true,data:document.readyState})); }, 2000);
});`
	for {
		var state string
		if err := s.client.Eval(ctx, cdp.WrapEvalAsync(body), &state); err == nil && state == "complete" {
			s.touch()
			return nil
		}
		if time.Now().After(deadline) {
			return cdp.NewError(cdp.CodeSession, "page did not finish loading", nil)
		}
		select {
		case <-ctx.Done():
			return cdp.NewError(cdp.CodeSession, "load wait canceled", ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Close stops the browser and releases the profile lock. Idempotent.
func (s *Session) Close() {
	s.teardown()
	slog.Info("session closed")
}

// ForceKill kills the whole browser process group without waiting for a
// graceful exit. The watchdog uses this when the renderer is hung and would
// ignore SIGTERM-triggered shutdown paths. It runs concurrently with the
// pipeline goroutine, so the fields stay set: the pipeline's next call then
// fails with a clean not-connected error instead of dereferencing nil.
func (s *Session) ForceKill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.launcher != nil {
		s.launcher.ForceKill()
	}
	if s.lock != nil {
		s.lock.Release()
	}
}

func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
	if s.launcher != nil {
		s.launcher.Stop()
		s.launcher = nil
	}
	if s.lock != nil {
		s.lock.Release()
		s.lock = nil
	}
}
