package failure

// attemptMessages maps terminal attempt categories to the actionable message
// surfaced to the calling workflow. Raw stack traces never reach the user.
var attemptMessages = map[AttemptCategory]string{
	AttemptCaptcha:             "CAPTCHA challenge detected. The browser profile has been quarantined; re-authenticate manually in a real browser before retrying.",
	AttemptLoginRecheckTimeout: "Login re-check did not complete in time. Verify the account session manually and retry.",
	AttemptClientHang:          "The automation froze mid-attempt and the browser was force-killed. Check system load and browser runtime health before retrying.",
	AttemptEditorInsert:        "Content could not be inserted into the editor. The editor layout may have changed; capture the editor debug dump and update the selector catalog.",
	AttemptEnvironment:         "Browser environment problem. Install the browser runtime, enable headless mode, or provide a virtual display.",
	AttemptAuth:                "Authentication expired and automated re-login did not recover it. Re-authenticate manually.",
	AttemptRateLimit:           "The service rate-limited this account. Wait before publishing again.",
	AttemptNetwork:             "Network failure while talking to the service. Check connectivity and DNS, then retry.",
	AttemptGeneric:             "Publish attempt failed. See the failure report for details.",
}

// Message returns the actionable user-facing message for a category.
func (c AttemptCategory) Message() string {
	if msg, ok := attemptMessages[c]; ok {
		return msg
	}
	return attemptMessages[AttemptGeneric]
}
