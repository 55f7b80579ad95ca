// Package failure turns raw pipeline errors into a closed category taxonomy
// and captures on-disk evidence for every raised failure.
package failure

import "strings"

// Category is the stage-level failure taxonomy.
type Category string

const (
	CategoryNetwork          Category = "network"
	CategorySessionExpired   Category = "session-expired"
	CategoryFrameAcquisition Category = "frame-acquisition"
	CategoryEditorInteract   Category = "editor-interaction"
	CategorySaveVerification Category = "save-verification"
	CategoryPlaceAttachment  Category = "place-attachment"
	CategoryImageUpload      Category = "image-upload"
	CategoryRateLimit        Category = "rate-limit"
	CategoryDOMChange        Category = "dom-structure-change"
	CategoryUnknown          Category = "unknown"
)

// AttemptCategory is the attempt-level taxonomy the retry loop dispatches on.
type AttemptCategory string

const (
	AttemptCaptcha             AttemptCategory = "captcha-blocked"
	AttemptLoginRecheckTimeout AttemptCategory = "login-recheck-timeout"
	AttemptClientHang          AttemptCategory = "client-hang"
	AttemptEditorInsert        AttemptCategory = "editor-insert-failed"
	AttemptEnvironment         AttemptCategory = "environment"
	AttemptAuth                AttemptCategory = "authentication-expired"
	AttemptRateLimit           AttemptCategory = "rate-limited"
	AttemptNetwork             AttemptCategory = "network"
	AttemptGeneric             AttemptCategory = "generic-upload-failed"
)

// Signals carries out-of-band facts the orchestrator observed during the
// attempt that the error text alone cannot prove.
type Signals struct {
	CaptchaVisible       bool
	WatchdogFired        bool
	LoginRecheckTimedOut bool
}

var (
	captchaHints = []string{"captcha", "recaptcha", "보안문자", "자동입력 방지"}
	hangHints    = []string{"stage timeout", "watchdog", "client hang", "pipeline frozen"}
	// Editor-interaction phrases are checked before authentication phrases:
	// an injection failure message may mention "login" or "failed" without
	// being an auth problem, and misrouting it to the relogin path would
	// burn the single relogin slot on a selector bug.
	editorHints = []string{
		"injection", "strategies exhausted", "editor frame", "contenteditable",
		"save commit", "insert", "선택자",
	}
	envHints = []string{
		"no display", "browser launch", "no supported browser", "executable",
		"profile already in use", "missing dependency",
	}
	authHints = []string{
		"login", "logged out", "authentication", "session expired", "nidlogin",
		"relogin",
	}
	rateHints = []string{"rate limit", "too many requests", "429", "일시적으로 제한"}
	netHints  = []string{
		"dns", "connection refused", "connection reset", "network", "timeout",
		"temporary failure", "no such host", "eof", "broken pipe",
	}

	frameHints  = []string{"frame acquisition", "editor frame", "iframe"}
	verifyHints = []string{"verification", "toast", "draft list", "save"}
	placeHints  = []string{"place"}
	imageHints  = []string{"image", "file input", "upload", "photo"}
	domHints    = []string{"no node matches", "selector", "querySelector"}
)

func containsHint(text string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(text, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

// ClassifyStage maps a stage failure to the stage-level taxonomy using the
// lowercased error text and the stage name. Order matters: specific phrase
// sets run before the generic ones they overlap with.
func ClassifyStage(err error, stage string) Category {
	if err == nil {
		return CategoryUnknown
	}
	text := strings.ToLower(err.Error() + " " + stage)

	switch {
	case containsHint(text, rateHints):
		return CategoryRateLimit
	case containsHint(text, frameHints):
		return CategoryFrameAcquisition
	case containsHint(text, placeHints):
		return CategoryPlaceAttachment
	case containsHint(text, imageHints):
		return CategoryImageUpload
	case containsHint(text, verifyHints):
		return CategorySaveVerification
	case containsHint(text, editorHints):
		return CategoryEditorInteract
	case containsHint(text, authHints):
		return CategorySessionExpired
	case containsHint(text, domHints):
		return CategoryDOMChange
	case containsHint(text, netHints):
		return CategoryNetwork
	default:
		return CategoryUnknown
	}
}

// ClassifyAttempt maps a finished attempt's aggregate outcome to the
// attempt-level taxonomy in strict priority order. CAPTCHA and client-hang
// outrank everything that merely looks transient, because retrying either is
// futile (CAPTCHA) or actively harmful (hang: the automation itself froze).
func ClassifyAttempt(errText string, sig Signals) AttemptCategory {
	text := strings.ToLower(errText)

	switch {
	case sig.CaptchaVisible || containsHint(text, captchaHints):
		return AttemptCaptcha
	case sig.LoginRecheckTimedOut || containsHint(text, []string{"login recheck"}):
		return AttemptLoginRecheckTimeout
	case sig.WatchdogFired || containsHint(text, hangHints):
		return AttemptClientHang
	case containsHint(text, editorHints):
		return AttemptEditorInsert
	case containsHint(text, envHints):
		return AttemptEnvironment
	case containsHint(text, authHints):
		return AttemptAuth
	case containsHint(text, rateHints):
		return AttemptRateLimit
	case containsHint(text, netHints):
		return AttemptNetwork
	default:
		return AttemptGeneric
	}
}

// Retryable reports whether the attempt-level category may consume another
// retry slot. Auth is special-cased by the orchestrator (one relogin, once).
func (c AttemptCategory) Retryable() bool {
	switch c {
	case AttemptCaptcha, AttemptClientHang, AttemptLoginRecheckTimeout:
		return false
	default:
		return true
	}
}
