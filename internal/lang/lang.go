// Package lang resolves the user's language preference. The preference is
// not auth state: every auth transition reads it before mutating cookies
// and re-writes it unchanged afterwards.
package lang

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// Default is the language used when no preference can be resolved.
const Default = "en"

// HeaderName is the explicit preference header, set by the UI.
const HeaderName = "X-Language"

// CookieName stores the persisted language preference.
const CookieName = "language"

var supported = map[string]struct{}{
	"en": {},
	"es": {},
	"pt": {},
	"fr": {},
	"de": {},
	"ja": {},
}

var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Spanish,
	language.Portuguese,
	language.French,
	language.German,
	language.Japanese,
})

// Supported reports whether code is a recognized language code.
func Supported(code string) bool {
	_, ok := supported[code]
	return ok
}

// Resolve picks the preferred language with precedence: explicit header,
// then cookie, then default. Unknown codes are skipped, not coerced.
func Resolve(header, cookie string) string {
	if code := normalize(header); code != "" {
		return code
	}
	if code := normalize(cookie); code != "" {
		return code
	}
	return Default
}

// FromRequest resolves the preference for an inbound request. It extends
// Resolve with an Accept-Language fallback between the cookie and the
// default.
func FromRequest(r *http.Request) string {
	if code := normalize(r.Header.Get(HeaderName)); code != "" {
		return code
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		if code := normalize(cookie.Value); code != "" {
			return code
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			tag, _, conf := matcher.Match(tags...)
			if conf > language.No {
				base, _ := tag.Base()
				if code := normalize(base.String()); code != "" {
					return code
				}
			}
		}
	}
	return Default
}

func normalize(value string) string {
	code := strings.ToLower(strings.TrimSpace(value))
	if Supported(code) {
		return code
	}
	return ""
}
