package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ledenev737/BuhWise/pkg/logger"
)

// errCapture wraps chi's WrapResponseWriter to keep the body of error responses.
type errCapture struct {
	chimiddleware.WrapResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func (e *errCapture) WriteHeader(code int) {
	e.statusCode = code
	e.WrapResponseWriter.WriteHeader(code)
}

func (e *errCapture) Write(b []byte) (int, error) {
	if e.statusCode >= 400 {
		e.buf.Write(b)
	}
	return e.WrapResponseWriter.Write(b)
}

// extractErrorFields pulls the "error" and "code" fields from a JSON error body.
func extractErrorFields(body []byte) (message, code string) {
	var obj struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(body, &obj) == nil {
		return obj.Error, obj.Code
	}
	return "", ""
}

// Logger returns a request logging middleware. It must run after RequestID.
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ec := &errCapture{WrapResponseWriter: ww}
			start := time.Now()

			defer func() {
				status := ww.Status()
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				}
				if status >= 400 {
					msg, code := extractErrorFields(ec.buf.Bytes())
					if msg != "" {
						attrs = append(attrs, "error", msg)
					}
					if code != "" {
						attrs = append(attrs, "code", code)
					}
				}

				reqLog := log.WithContext(r.Context())
				switch {
				case status >= 500:
					reqLog.Error("HTTP request", attrs...)
				case status >= 400:
					reqLog.Warn("HTTP request", attrs...)
				default:
					reqLog.Info("HTTP request", attrs...)
				}
			}()

			next.ServeHTTP(ec, r)
		}
		return http.HandlerFunc(fn)
	}
}
