package logging

import (
	"regexp"
	"strings"
)

const (
	// MaskChar is the character used for masking.
	MaskChar = "*"
	// URLMaskLength is how many characters of a URL stay visible.
	URLMaskLength = 30
	// DefaultMaskLength is how many mask characters replace a hidden tail.
	DefaultMaskLength = 3
)

// SensitiveFields are key fragments whose values are never logged in clear.
var SensitiveFields = []string{
	"token",
	"secret",
	"password",
	"api_key",
	"apikey",
	"x-api-key",
	"authorization",
	"bearer",
	"credential",
	"private_key",
}

var (
	urlPattern = regexp.MustCompile(`https?://[^\s"']+`)
	// Anthropic keys look like sk-ant-api03-...
	apiKeyPattern = regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]+`)
)

// MaskURL keeps the first URLMaskLength characters of url.
func MaskURL(url string) string {
	if len(url) <= URLMaskLength {
		return url
	}
	return url[:URLMaskLength] + strings.Repeat(MaskChar, DefaultMaskLength)
}

// MaskValue hides value completely.
func MaskValue(value string) string {
	if value == "" {
		return ""
	}
	return strings.Repeat(MaskChar, min(len(value), 8))
}

// MaskPartial shows the first showChars characters of value.
func MaskPartial(value string, showChars int) string {
	if len(value) <= showChars {
		return strings.Repeat(MaskChar, len(value))
	}
	return value[:showChars] + strings.Repeat(MaskChar, DefaultMaskLength)
}

// IsSensitiveField checks if a field name indicates sensitive data.
func IsSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, keyword := range SensitiveFields {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// MaskString masks webhook URLs and API keys embedded in s. Loopback URLs are kept.
func MaskString(s string) string {
	s = apiKeyPattern.ReplaceAllStringFunc(s, func(k string) string {
		return MaskPartial(k, len("sk-ant-"))
	})
	return urlPattern.ReplaceAllStringFunc(s, func(url string) string {
		if strings.Contains(url, "localhost") || strings.Contains(url, "127.0.0.1") {
			return url
		}
		return MaskURL(url)
	})
}

// MaskArgs masks sensitive values in key/value logging arguments.
func MaskArgs(args []any) []any {
	result := make([]any, len(args))
	copy(result, args)

	for i := 0; i < len(result)-1; i += 2 {
		key, ok := result[i].(string)
		if !ok || !IsSensitiveField(key) {
			continue
		}
		if strVal, ok := result[i+1].(string); ok {
			result[i+1] = MaskValue(strVal)
		} else {
			result[i+1] = strings.Repeat(MaskChar, 8)
		}
	}
	return result
}

// MaskHeaders returns a copy of HTTP-style headers with credentials hidden.
func MaskHeaders(h map[string]string) map[string]string {
	result := make(map[string]string, len(h))
	for key, value := range h {
		if IsSensitiveField(key) {
			result[key] = "***"
		} else {
			result[key] = value
		}
	}
	return result
}
