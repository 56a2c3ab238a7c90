package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/playcat/catconsult/internal/models"
)

// allowedKeywords lists on-topic terms: cat/enrichment vocabulary plus
// consultation and inquiry terms that are acceptable without a cat mention.
var allowedKeywords = []string{
	// cat related
	"고양이", "캣", "cat", "고냥이", "냥이", "냥", "묘", "meow",
	"플레이캣", "playcat", "pet", "펫", "반려동물", "반려묘",
	"행동풍부화", "캣타워", "캣워크", "캣휠", "캣폴",
	"발판", "스크래쳐", "터널", "해먹", "안전", "건강",
	"집사", "고양이집사",
	// consultation/inquiry related (allowed even without a cat term)
	"설치", "견적", "상담", "문의", "가격", "비용", "금액",
	"제품", "구매", "주문", "예약", "신청",
	"전문가", "컨설팅", "도움", "도와", "알려",
	"궁금", "질문", "여쭤", "물어",
}

// blockedKeywords lists off-topic and security-sensitive terms. Checked
// before the allow list: a blocked term always wins.
var blockedKeywords = []string{
	"json", "file", "파일", "다운로드", "download",
	"hack", "해킹", "sql", "injection", "xss",
	"script", "<script>", "javascript:",
	"admin", "관리자", "password", "비밀번호",
	"개", "강아지", "dog", "puppy",
	"정치", "politics", "종교", "religion",
	"사기", "scam", "불법", "illegal",
}

// greetingTerms exempt plain greetings from the allow-keyword requirement.
var greetingTerms = []string{
	"안녕", "hi", "hello", "헬로", "안뇽", "ㅎㅇ", "반가", "처음", "시작",
}

// dangerousPatterns block injection-shaped input regardless of topic.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script.*?>.*?</script>`),
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`(?is)(union|select|insert|delete|drop|update|exec|execute).*?(from|into|table)`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)\.json$`),
	regexp.MustCompile(`(?i)\.txt$`),
	regexp.MustCompile(`(?i)\.py$`),
	regexp.MustCompile(`(?i)\.js$`),
	regexp.MustCompile(`(?i)\.sh$`),
	regexp.MustCompile(`(?i)\.exe$`),
	regexp.MustCompile(`(?i)\.bat$`),
}

// User-facing refusal messages.
const (
	reasonEmptyMessage    = "빈 메시지는 허용되지 않습니다."
	reasonSecurityWarning = "⚠️ 보안 위험이 감지되었습니다. 이 요청은 차단됩니다."
	blockedKeywordFormat  = "죄송합니다. 이 챗봇은 **고양이 행동풍부화 상담 전용**입니다. '%s' 관련 문의는 처리할 수 없습니다."
	reasonOffTopic        = "죄송합니다. 이 챗봇은 **고양이 행동풍부화 전문 상담**만 제공합니다.\n\n" +
		"다음 주제로 문의해 주세요:\n" +
		"• 고양이 행동풍부화 시설 (캣타워, 캣워크, 발판 등)\n" +
		"• 설치 견적 및 상담\n" +
		"• 고양이 행동 문제 상담\n" +
		"• 제품 추천\n\n" +
		"고양이와 무관한 문의는 처리할 수 없습니다. 🐱"
)

// topicInput bundles the values a topic rule may inspect.
type topicInput struct {
	message        string
	lower          string
	optionSelected bool
}

// topicVerdict is a decisive rule outcome; a nil verdict means the rule
// passes and evaluation continues with the next rule.
type topicVerdict struct {
	allowed bool
	reason  string
}

// topicRule is one entry in the ordered classification table.
type topicRule struct {
	name     string
	evaluate func(in topicInput) *topicVerdict
}

// topicRules is evaluated strictly top to bottom; the first decisive rule
// wins. The order is load-bearing: the block list runs before anything that
// could allow the message, and the security patterns run before the
// allow-keyword requirement.
var topicRules = []topicRule{
	{
		name: "empty_message",
		evaluate: func(in topicInput) *topicVerdict {
			if strings.TrimSpace(in.message) != "" {
				return nil
			}
			if in.optionSelected {
				// An option click may carry no text payload.
				return &topicVerdict{allowed: true}
			}
			return &topicVerdict{allowed: false, reason: reasonEmptyMessage}
		},
	},
	{
		name: "blocked_keyword",
		evaluate: func(in topicInput) *topicVerdict {
			for _, blocked := range blockedKeywords {
				if strings.Contains(in.lower, strings.ToLower(blocked)) {
					return &topicVerdict{allowed: false, reason: fmt.Sprintf(blockedKeywordFormat, blocked)}
				}
			}
			return nil
		},
	},
	{
		name: "dangerous_pattern",
		evaluate: func(in topicInput) *topicVerdict {
			for _, pattern := range dangerousPatterns {
				if pattern.MatchString(in.message) {
					// Generic message only; naming the pattern would guide an attacker.
					return &topicVerdict{allowed: false, reason: reasonSecurityWarning}
				}
			}
			return nil
		},
	},
	{
		name: "allow_keyword_required",
		evaluate: func(in topicInput) *topicVerdict {
			// Messages this short are too ambiguous to classify reliably.
			if utf8.RuneCountInString(in.message) <= models.ShortMessageExemptLength {
				return nil
			}
			for _, keyword := range allowedKeywords {
				if strings.Contains(in.lower, keyword) {
					return nil
				}
			}
			for _, greeting := range greetingTerms {
				if strings.Contains(in.lower, greeting) {
					return nil
				}
			}
			return &topicVerdict{allowed: false, reason: reasonOffTopic}
		},
	},
}

// Classify decides whether a sanitized message stays within the supported
// consultation domain. isOptionSelected marks messages attached to an option
// click, which are allowed to be empty.
func Classify(message string, isOptionSelected bool) (bool, string) {
	in := topicInput{
		message:        message,
		lower:          strings.ToLower(message),
		optionSelected: isOptionSelected,
	}
	for _, rule := range topicRules {
		if v := rule.evaluate(in); v != nil {
			return v.allowed, v.reason
		}
	}
	return true, ""
}
