package download

import (
	"fmt"
	"net/http"

	"github.com/neilcrookes/export/internal/render"
)

// Headers returns the response headers for a streamed export download.
// Exports are per-request documents, so every cache layer between the
// server and the user agent is told not to keep them.
func Headers(format render.Format, charset, filename string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", fmt.Sprintf("%s; charset=%s", format.MIME, charset))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Cache-Control", "private, no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Content-Transfer-Encoding", "binary")
	return h
}
