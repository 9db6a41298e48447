package middleware

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const redacted = "REDACTED"

// RequestLogger logs one line per request like chi's Logger, with the
// access_token query parameter masked. A nil printer writes to the global
// zerolog logger at info level.
func RequestLogger(printer chimw.LoggerInterface) func(http.Handler) http.Handler {
	if printer == nil {
		printer = zerologPrinter{}
	}
	return chimw.RequestLogger(&redactingFormatter{
		next: &chimw.DefaultLogFormatter{Logger: printer, NoColor: true},
	})
}

type zerologPrinter struct{}

func (zerologPrinter) Print(v ...any) {
	log.Info().Msg(fmt.Sprint(v...))
}

type redactingFormatter struct {
	next chimw.LogFormatter
}

func (f *redactingFormatter) NewLogEntry(r *http.Request) chimw.LogEntry {
	uri := RedactURI(r.RequestURI)
	if uri == r.RequestURI {
		return f.next.NewLogEntry(r)
	}
	masked := r.Clone(r.Context())
	masked.RequestURI = uri
	if u, err := url.ParseRequestURI(uri); err == nil {
		masked.URL = u
	}
	return f.next.NewLogEntry(masked)
}

// RedactURI masks the access_token query parameter of a request URI.
func RedactURI(uri string) string {
	path, rawQuery, ok := strings.Cut(uri, "?")
	if !ok || rawQuery == "" {
		return uri
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		// Unparseable; drop the whole query rather than risk leaking it.
		return path + "?" + redacted
	}
	if !q.Has(AccessTokenParam) {
		return uri
	}
	q.Set(AccessTokenParam, redacted)
	return path + "?" + q.Encode()
}
