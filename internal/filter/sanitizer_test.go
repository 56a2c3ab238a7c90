package filter

import "testing"

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "고양이 상담 문의", "고양이 상담 문의"},
		{"strips tags", "<b>hello</b> world", "hello world"},
		{"strips script tags", "<script>alert(1)</script>", "alert(1)"},
		{"collapses whitespace", "hello   \t\n  world", "hello world"},
		{"trims edges", "   고양이  ", "고양이"},
		{"empty input", "", ""},
		{"only tags", "<div><span></span></div>", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
