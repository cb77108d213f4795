package shield

import "net/http"

// HeadToGet serves HEAD requests with the GET route, so health checks of
// /health and /metrics answer 200 rather than 405. net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
