package utils

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"a_b", `a\_b`},
		{"*bold* [link](url)", `\*bold\* \[link\]\(url\)`},
		{"1+1=2!", `1\+1\=2\!`},
		{"code `x`", "code \\`x\\`"},
		{"", ""},
		{"héllo wörld", "héllo wörld"},
	}

	for _, c := range cases {
		if got := EscapeMarkdown(c.in); got != c.want {
			t.Fatalf("EscapeMarkdown(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("Truncate short = %q, want unchanged", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Fatalf("Truncate = %q, want %q", got, "hello...")
	}
	if got := Truncate("héllo wörld", 5); got != "héllo..." {
		t.Fatalf("Truncate multibyte = %q, want %q", got, "héllo...")
	}
	if got := Truncate("hello", 0); got != "" {
		t.Fatalf("Truncate(0) = %q, want empty", got)
	}
}
