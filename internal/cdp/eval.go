package cdp

import "encoding/json"

// JSString encodes a Go string as a JS string literal.
func JSString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// JSJSON encodes any Go value as a JS literal.
func JSJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildIIFE(async bool, body string) string {
	prefix := "(function(){\n"
	if async {
		prefix = "(async function(){\n"
	}
	return prefix + `try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

// WrapEval wraps a JS body in the synchronous envelope IIFE. The body must
// return a JSON.stringify'd {ok,data,error_code,error_message} envelope.
func WrapEval(body string) string { return buildIIFE(false, body) }

// WrapEvalAsync wraps a JS body in the async envelope IIFE so the body may await.
func WrapEvalAsync(body string) string { return buildIIFE(true, body) }
