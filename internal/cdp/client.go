package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// transientHints are substrings in error causes that indicate a transient
// failure worth retrying (e.g. broken connection, closed session).
var transientHints = []string{
	"context canceled",
	"target closed",
	"session closed",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection refused",
	"connection closed",
}

// Client drives one page target over a raw CDP connection. It owns exactly
// one attached session; Attach on a new target invalidates the previous one.
type Client struct {
	cdpURL      string
	urlFilter   string
	evalTimeout time.Duration

	mu        sync.Mutex
	cdp       *rawCDP
	sessionID string
	page      PageInfo
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// NewClient creates a CDP client for the browser at cdpURL. urlFilter
// restricts which page target Connect attaches to (substring match,
// case-insensitive); empty matches any page.
func NewClient(cdpURL, urlFilter string, evalTimeout time.Duration) *Client {
	return &Client{
		cdpURL:      cdpURL,
		urlFilter:   strings.ToLower(strings.TrimSpace(urlFilter)),
		evalTimeout: evalTimeout,
	}
}

// Connect dials the browser and attaches to the first matching page target.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return NewError(CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("cdp connect start", "cdp_url", c.cdpURL)
	c.cleanupLocked()

	c.cdp = newRawCDP(c.cdpURL)
	if err := c.cdp.connect(ctx); err != nil {
		c.cdp = nil
		return NewError(CodeCDPUnavailable, "connect to CDP failed", err)
	}

	if err := c.attachPageLocked(ctx); err != nil {
		c.cleanupLocked()
		return err
	}

	slog.Info("cdp connect ok", "cdp_url", c.cdpURL, "url", c.page.URL)
	return nil
}

func (c *Client) attachPageLocked(ctx context.Context) error {
	targets, err := c.cdp.listTargets(ctx)
	if err != nil {
		return NewError(CodeCDPUnavailable, "failed to list targets", err)
	}

	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if c.urlFilter != "" && !strings.Contains(strings.ToLower(t.URL), c.urlFilter) {
			continue
		}
		sid, err := c.cdp.attachToTarget(ctx, string(t.TargetID))
		if err != nil {
			slog.Warn("cdp attach failed", "target_id", t.TargetID, "error", err)
			continue
		}
		c.sessionID = sid
		c.page = PageInfo{TargetID: string(t.TargetID), URL: t.URL, Title: t.Title}

		if err := c.cdp.enablePageDomain(ctx, sid); err != nil {
			slog.Debug("cdp Page.enable failed", "error", err)
		}
		// Native JS dialogs (beforeunload, confirm) block all further input.
		c.cdp.registerEventHandler("Page.javascriptDialogOpening", func(sessionID string, _ json.RawMessage) {
			dctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := c.cdp.handleJavaScriptDialog(dctx, sessionID, true); err != nil {
				slog.Debug("cdp dialog dismiss failed", "error", err)
			}
		})
		slog.Debug("cdp session attached", "target_id", t.TargetID, "session_id", sid)
		return nil
	}

	return NewError(CodeCDPUnavailable, "no page target matches filter "+c.urlFilter, nil)
}

// Close detaches and tears down the CDP connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
	return nil
}

func (c *Client) cleanupLocked() {
	if c.cdp != nil {
		if c.sessionID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = c.cdp.detachFromTarget(ctx, c.sessionID)
			cancel()
		}
		c.cdp.close()
		c.cdp = nil
	}
	c.sessionID = ""
	c.page = PageInfo{}
}

// Page returns info about the attached page target.
func (c *Client) Page() PageInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Eval evaluates a wrapped JS expression (see WrapEval) on the attached page
// and decodes the envelope's data into out. Transient connection failures
// trigger one reconnect-and-retry.
func (c *Client) Eval(ctx context.Context, js string, out any) error {
	err := c.evalOnce(ctx, js, out)
	if err == nil {
		return nil
	}
	if !c.shouldRetry(err) {
		return err
	}

	slog.Warn("cdp eval retry after transient failure", "error", err)
	if recErr := c.Connect(ctx); recErr != nil {
		slog.Error("cdp reconnect failed during retry", "error", recErr)
		return recErr
	}
	return c.evalOnce(ctx, js, out)
}

func (c *Client) evalOnce(ctx context.Context, js string, out any) error {
	cdp, sessionID, err := c.current()
	if err != nil {
		return err
	}

	evalCtx, evalCancel := context.WithTimeout(ctx, c.evalTimeout)
	defer evalCancel()

	raw, err := cdp.evaluate(evalCtx, sessionID, js)
	if err != nil {
		slog.Warn("cdp eval failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return NewError(CodeEvalTimeout, "evaluation timed out", err)
		}
		return NewError(CodeEvalFailure, "evaluation failed", err)
	}

	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return NewError(CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeEvalFailure
		}
		return NewError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return NewError(CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

// Navigate drives the attached page to the given URL.
func (c *Client) Navigate(ctx context.Context, url string) error {
	cdp, sessionID, err := c.current()
	if err != nil {
		return err
	}
	if err := cdp.navigate(ctx, sessionID, url); err != nil {
		return NewError(CodeSession, "navigation failed", err)
	}
	return nil
}

// TypeText types text into the focused element one character at a time using
// trusted key events. Newlines are dispatched as explicit Enter presses
// because rich-text editors treat key events, not embedded characters, as
// paragraph breaks.
func (c *Client) TypeText(ctx context.Context, text string) error {
	cdp, sessionID, err := c.current()
	if err != nil {
		return err
	}
	for _, r := range text {
		if r == '\n' {
			if err := cdp.dispatchKeyEvent(ctx, sessionID, "Enter", "Enter", 13, 0); err != nil {
				return NewError(CodeEditor, "enter key dispatch failed", err)
			}
			continue
		}
		if err := cdp.dispatchCharInput(ctx, sessionID, string(r)); err != nil {
			return NewError(CodeEditor, "char dispatch failed", err)
		}
	}
	return nil
}

// InsertText inserts a string into the focused element in one CDP call.
// Faster than TypeText but does not fire per-key handlers.
func (c *Client) InsertText(ctx context.Context, text string) error {
	cdp, sessionID, err := c.current()
	if err != nil {
		return err
	}
	if err := cdp.insertText(ctx, sessionID, text); err != nil {
		return NewError(CodeEditor, "insert text failed", err)
	}
	return nil
}

// PressKey dispatches a trusted key press (down+up) with optional modifiers.
// modifiers is a bitmask: 1=Alt, 2=Ctrl, 4=Meta, 8=Shift.
func (c *Client) PressKey(ctx context.Context, key, code string, keyCode, modifiers int) error {
	cdp, sessionID, err := c.current()
	if err != nil {
		return err
	}
	if err := cdp.dispatchKeyEvent(ctx, sessionID, key, code, keyCode, modifiers); err != nil {
		return NewError(CodeEditor, "key dispatch failed", err)
	}
	return nil
}

// Screenshot captures the attached page and returns decoded image bytes.
func (c *Client) Screenshot(ctx context.Context, format string, quality int, fullPage bool) ([]byte, error) {
	cdp, sessionID, err := c.current()
	if err != nil {
		return nil, err
	}
	data, err := cdp.captureScreenshot(ctx, sessionID, format, quality, fullPage)
	if err != nil {
		return nil, NewError(CodeEvalFailure, "screenshot failed", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, NewError(CodeEvalFailure, "decode screenshot", err)
	}
	return decoded, nil
}

// SetFileInputExpr populates the file input returned by a JS expression with
// local paths. Use this for inputs that live inside a same-origin iframe.
func (c *Client) SetFileInputExpr(ctx context.Context, expr string, paths []string) error {
	cdp, sessionID, err := c.current()
	if err != nil {
		return err
	}
	if err := cdp.setFileInputFilesByExpr(ctx, sessionID, expr, paths); err != nil {
		return NewError(CodeEditor, "set file input failed", err)
	}
	return nil
}

// BrowserWSURL returns the browser-level websocket debugger URL, for tooling
// that attaches its own session (evidence capture) alongside this client.
func (c *Client) BrowserWSURL(ctx context.Context) (string, error) {
	c.mu.Lock()
	cdp := c.cdp
	c.mu.Unlock()
	if cdp == nil {
		return "", NewError(CodeCDPUnavailable, "CDP client not connected", nil)
	}
	url, err := cdp.browserWSURL(ctx)
	if err != nil {
		return "", NewError(CodeCDPUnavailable, "resolve browser websocket URL", err)
	}
	return url, nil
}

func (c *Client) current() (*rawCDP, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cdp == nil || c.sessionID == "" {
		return nil, "", NewError(CodeCDPUnavailable, "CDP client not connected", nil)
	}
	return c.cdp, c.sessionID, nil
}

func (c *Client) shouldRetry(err error) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}

	switch coded.Code {
	case CodeCDPUnavailable:
		return true
	case CodeEvalFailure:
		if coded.Cause == nil {
			return false
		}
		cause := strings.ToLower(coded.Cause.Error())
		for _, hint := range transientHints {
			if strings.Contains(cause, hint) {
				return true
			}
		}
	}
	return false
}
