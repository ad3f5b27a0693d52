// Package sanitize provides HTML sanitization for text that ends up inside
// stored HTML (audit entry content, rendered email bodies). Uses bluemonday
// so account names or SMTP error strings cannot smuggle markup.
package sanitize

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict     *bluemonday.Policy
	strictOnce sync.Once

	basic     *bluemonday.Policy
	basicOnce sync.Once
)

// getStrict returns the policy that strips every tag.
func getStrict() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// getBasic returns the policy for composed HTML fragments: paragraphs,
// emphasis and lists only.
func getBasic() *bluemonday.Policy {
	basicOnce.Do(func() {
		basic = bluemonday.NewPolicy()
		basic.AllowElements("p", "strong", "em", "br", "ul", "ol", "li")
	})
	return basic
}

// Text strips all markup from s and HTML-escapes what remains. Use it on
// any value interpolated into an HTML template by hand.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return getStrict().Sanitize(s)
}

// HTML keeps the small set of formatting tags used by audit content and
// email bodies, dropping everything else.
func HTML(s string) string {
	if s == "" {
		return ""
	}
	return getBasic().Sanitize(s)
}
