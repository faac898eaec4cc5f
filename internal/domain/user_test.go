package domain

import "testing"

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"a@x.com":         "a@x.com",
		"  A@X.Com ":      "a@x.com",
		"Ana.Lopez@X.COM": "ana.lopez@x.com",
		"":                "",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
