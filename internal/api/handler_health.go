package api

import "net/http"

// HandleHealthcheck reports process liveness. The body text is part of the
// deployment's probe configuration, keep it stable.
func HandleHealthcheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("web3cache dispatcher OK"))
	}
}
