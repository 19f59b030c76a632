// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RequestLogger wraps a handler and emits one structured line per request:
// method, path, duration and peer address. Websocket upgrades log their
// single line only when the session ends, which is the duration recorded.
func RequestLogger(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("Request served")
		})
	}
}

// LogSocketOpen records an accepted websocket session.
func LogSocketOpen(logger *logrus.Logger, remoteAddr, path string) {
	logger.WithFields(logrus.Fields{
		"remote": remoteAddr,
		"path":   path,
	}).Info("Session opened")
}

// LogSocketClose records the end of a websocket session along with the read
// error that ended it. A normal closure still carries an error here; it is
// informational, not a failure.
func LogSocketClose(logger *logrus.Logger, remoteAddr, path string, err error) {
	fields := logrus.Fields{
		"remote": remoteAddr,
		"path":   path,
	}
	if err != nil {
		fields["reason"] = err
	}
	logger.WithFields(fields).Info("Session closed")
}
