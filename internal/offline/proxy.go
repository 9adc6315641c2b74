package offline

import (
	"net/http"
	"net/http/httputil"

	"go-vision-lens/internal/logger"
)

// Handler reverse proxies app-shell requests to the asset origin through
// the worker, so cached assets are served when the origin is unreachable.
func (w *Worker) Handler() http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(w.origin)
			pr.Out.Host = w.origin.Host
		},
		Transport: w,
		ErrorHandler: func(rw http.ResponseWriter, r *http.Request, err error) {
			logger.WithError(err).WithField("path", r.URL.Path).Warn("Asset proxy failed")
			rw.Header().Set("Content-Type", "text/plain")
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte(OfflineMessage))
		},
	}
}
