package web

import (
	"encoding/json"
	"net/http"

	"github.com/artpar/recordbase/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError renders any error as its apierror form, a {code, message}
// body. Unknown errors collapse to a generic 500 so internal detail never
// leaks.
func writeError(w http.ResponseWriter, err error) {
	apiErr := apierror.FromError(err)
	writeJSON(w, apiErr.Code, apiErr)
}

func decodeBody(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return apierror.BadRequest("Invalid JSON body")
	}
	return nil
}
