package logger

import (
	"regexp"
	"strings"
)

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	apiKeyParam = regexp.MustCompile(`(api_key=)[^&\s"]+`)
	eoKeyRegex  = regexp.MustCompile(`\beo_[A-Za-z0-9]{8,}\b`)
)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactAPIKey hides api_key query values and bare EmailOctopus keys.
func RedactAPIKey(s string) string {
	s = apiKeyParam.ReplaceAllString(s, "${1}***")
	return eoKeyRegex.ReplaceAllString(s, "eo_***")
}

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "subscriber") {
		return RedactEmail(val)
	}
	val = RedactAPIKey(val)
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
