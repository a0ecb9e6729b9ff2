package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware attaches the document localizer for lang to each request and
// announces the language of the rendered labels.
func Middleware(lang string) func(http.Handler) http.Handler {
	loc := NewLocalizer(lang)
	contentLang := defaultLang
	if tag, err := language.Parse(lang); err == nil {
		contentLang = tag.String()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Language", contentLang)
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
