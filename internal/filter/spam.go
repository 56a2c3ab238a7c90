package filter

import (
	"regexp"
	"unicode/utf8"

	"github.com/playcat/catconsult/internal/models"
)

// Spam rejection messages shown to the user.
const (
	spamReasonTooLong       = "메시지가 너무 깁니다. 5000자 이내로 작성해주세요."
	spamReasonRepetition    = "반복된 문자가 너무 많습니다."
	spamReasonTooManyURLs   = "URL이 너무 많습니다. 스팸으로 의심됩니다."
	spamReasonTooManyEmails = "이메일 주소가 너무 많습니다."
)

var (
	urlPattern   = regexp.MustCompile(`https?://[^\s]+`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// CheckSpam applies the spam heuristics in order; the first matching rule
// wins. Pure and deterministic.
func CheckSpam(message string) (bool, string) {
	if utf8.RuneCountInString(message) > models.MaxMessageLength {
		return true, spamReasonTooLong
	}
	if hasExcessiveRepetition(message, models.MaxRepeatedRunLength) {
		return true, spamReasonRepetition
	}
	if len(urlPattern.FindAllString(message, -1)) > models.MaxURLCount {
		return true, spamReasonTooManyURLs
	}
	if len(emailPattern.FindAllString(message, -1)) > models.MaxEmailCount {
		return true, spamReasonTooManyEmails
	}
	return false, ""
}

// hasExcessiveRepetition reports whether any rune repeats more than maxRun
// times consecutively. RE2 has no backreferences, so this is a manual scan.
func hasExcessiveRepetition(message string, maxRun int) bool {
	var prev rune
	run := 0
	for _, r := range message {
		if r == prev {
			run++
			if run > maxRun {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}
