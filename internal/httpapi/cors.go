package httpapi

import "net/http"

// cors permits every origin on the two POST endpoints, per spec.md §6. No
// third-party CORS middleware appears anywhere in the retrieval pack and
// the policy is a single static header, so this is hand written rather
// than pulling in a dependency for it (see DESIGN.md).
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
