package sync

import "strings"

const bannerLimit = 220

var outOfCreditPhrases = []string{
	"out of credit",
	"quota exceeded",
	"exceeded your current quota",
	"billing hard limit",
	"insufficient quota",
	"insufficient credit",
	"payment required",
	"usage limit reached",
}

// DetectOutOfCredit reports whether an error message is a billing/quota
// failure. These get a persistent banner instead of the generic error field.
func DetectOutOfCredit(message string) bool {
	lowered := strings.ToLower(message)
	for _, phrase := range outOfCreditPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// TrimBanner bounds a banner message to the display limit. The limit counts
// runes so a multi-byte character is never split.
func TrimBanner(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= bannerLimit {
		return message
	}
	return string(runes[:bannerLimit-1]) + "…"
}
