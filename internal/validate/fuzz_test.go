package validate

import (
	"strings"
	"testing"
	"unicode"

	"github.com/manav03panchal/couponvault/internal/model"
)

// FuzzSanitizeField checks that sanitized fields carry no control characters
// and no surrounding or repeated whitespace.
// Run with: go test ./internal/validate -fuzz=FuzzSanitizeField -fuzztime=30s
func FuzzSanitizeField(f *testing.F) {
	seeds := []string{
		"Acme",
		"hello\x00world",
		"test\x1b[31mred",
		"café  résumé",
		"emoji 😀🎉",
		"'; DROP TABLE coupons;--",
		"<script>alert('xss')</script>",
		string(make([]byte, 10000)),
		"",
		"\t\n\r",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		got := SanitizeField(input)
		if got != strings.TrimSpace(got) {
			t.Fatalf("untrimmed result %q", got)
		}
		if strings.Contains(got, "  ") {
			t.Fatalf("repeated spaces in %q", got)
		}
		for _, r := range got {
			if unicode.IsControl(r) {
				t.Fatalf("control character %U in %q", r, got)
			}
		}
	})
}

// FuzzCoupon checks that validation never panics on sanitized input.
func FuzzCoupon(f *testing.F) {
	f.Add("Acme", "SAVE10", "10%", "qr")
	f.Add("", "", "", "")
	f.Add(strings.Repeat("x", MaxStoreLength+1), "c", "d", "barcode")

	f.Fuzz(func(t *testing.T, store, code, discount, codeType string) {
		c := SanitizeCoupon(model.Coupon{Store: store, Code: code, Discount: discount, CodeType: codeType})
		_ = Coupon(c)
	})
}

// FuzzSafeFilename checks the result is a bounded, separator-free name.
func FuzzSafeFilename(f *testing.F) {
	for _, seed := range []string{"a/b:c", "../../etc/passwd", "..\\win", " .name. ", ""} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		got := SafeFilename(input)
		if strings.ContainsAny(got, "/\\") {
			t.Fatalf("separator in %q", got)
		}
		if len(got) > 200 {
			t.Fatalf("name too long: %d", len(got))
		}
	})
}
