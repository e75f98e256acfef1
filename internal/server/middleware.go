package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

func accessLog(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		observer := &statusObserver{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(observer, r)

		event := logger.Info()
		if observer.status >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", observer.status).
			Dur("duration", time.Since(started)).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}

type statusObserver struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (o *statusObserver) WriteHeader(status int) {
	if !o.wroteHeader {
		o.status = status
		o.wroteHeader = true
	}
	o.ResponseWriter.WriteHeader(status)
}

func (o *statusObserver) Flush() {
	if flusher, ok := o.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (o *statusObserver) Unwrap() http.ResponseWriter {
	return o.ResponseWriter
}
