package filter

import (
	"strings"
	"testing"
)

func TestCheckSpam_Length(t *testing.T) {
	if isSpam, reason := CheckSpam(strings.Repeat("a", 5001)); !isSpam {
		t.Fatal("expected 5001-char message to be spam")
	} else if reason != spamReasonTooLong {
		t.Errorf("expected length reason, got %q", reason)
	}

	// Boundary: exactly 5000 characters passes the length rule. Alternating
	// runes so the repetition rule does not fire.
	msg := strings.Repeat("냥이", 2500)
	if isSpam, reason := CheckSpam(msg); isSpam {
		t.Errorf("expected message under limit to pass, got reason %q", reason)
	}
}

func TestCheckSpam_Repetition(t *testing.T) {
	if isSpam, reason := CheckSpam("도와주세요" + strings.Repeat("ㅋ", 21)); !isSpam {
		t.Fatal("expected 21-run to be spam")
	} else if reason != spamReasonRepetition {
		t.Errorf("expected repetition reason, got %q", reason)
	}
	if isSpam, _ := CheckSpam(strings.Repeat("ㅋ", 20)); isSpam {
		t.Error("expected 20-run to pass")
	}
}

func TestCheckSpam_URLCount(t *testing.T) {
	three := "설치 문의 http://a.com http://b.com https://c.com"
	if isSpam, _ := CheckSpam(three); isSpam {
		t.Error("expected 3 URLs to pass (boundary)")
	}

	four := three + " http://d.com"
	if isSpam, reason := CheckSpam(four); !isSpam {
		t.Fatal("expected 4 URLs to be spam")
	} else if reason != spamReasonTooManyURLs {
		t.Errorf("expected URL reason, got %q", reason)
	}
}

func TestCheckSpam_EmailCount(t *testing.T) {
	two := "연락처는 a@example.com b@example.com 입니다"
	if isSpam, _ := CheckSpam(two); isSpam {
		t.Error("expected 2 emails to pass (boundary)")
	}

	three := two + " c@example.com"
	if isSpam, reason := CheckSpam(three); !isSpam {
		t.Fatal("expected 3 emails to be spam")
	} else if reason != spamReasonTooManyEmails {
		t.Errorf("expected email reason, got %q", reason)
	}
}
