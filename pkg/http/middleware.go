package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("module", "http")

var errForeignOrigin = errors.New("cross-origin request refused")

// SameOrigin accepts non-browser clients (no Origin header) and pages
// served from the API's own host.
func SameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return strings.EqualFold(u.Host, r.Host)
}

// CommonMiddleware returns an http.Handler that sets up typical
// headers (CORS, etc.) before calling the next handler. CORS headers are
// only granted to the API's own origin; other origins may read nothing and
// change nothing.
func CommonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")

		allowed := SameOrigin(r)

		if origin := r.Header.Get("Origin"); origin != "" && allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if !allowed && r.Method != http.MethodGet && r.Method != http.MethodHead {
			logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"origin": r.Header.Get("Origin"),
			}).Warn("Refused cross-origin request")

			WriteError(w, http.StatusForbidden, errForeignOrigin)

			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		start := time.Now()

		next.ServeHTTP(w, r)

		logger.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start),
		}).Debug("HTTP request")
	})
}
