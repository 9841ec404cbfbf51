package respond

import (
	"regexp"
)

var (
	// Order matters: the Anthropic pattern is more specific than the OpenAI one.
	anthropicKeyPattern = regexp.MustCompile(`sk-ant-[a-zA-Z0-9-_]+`)
	openaiKeyPattern    = regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`)
	bearerPattern       = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]+`)
	urlPasswordPattern  = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)
)

// SanitizeError returns err's message with API keys, bearer tokens and URL
// passwords masked, so provider and storage errors can be logged safely.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	msg = anthropicKeyPattern.ReplaceAllString(msg, "sk-ant-****")
	msg = openaiKeyPattern.ReplaceAllString(msg, "sk-****")
	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")
	msg = urlPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}
