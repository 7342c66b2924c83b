package api

import (
	"fmt"
	"net/http"
)

const previewBoundary = "uvcctlframe"

// servePreview streams JPEG frames as multipart/x-mixed-replace, which
// browsers render in a plain <img> tag.
func (s *Server) servePreview(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	frames, unsubscribe := s.options.Preview.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+previewBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Debug("Preview viewer connected", "remote_addr", r.RemoteAddr)
	defer s.logger.Debug("Preview viewer disconnected", "remote_addr", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			return
		case jpeg, ok := <-frames:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", previewBoundary, len(jpeg)); err != nil {
				return
			}
			if _, err := w.Write(jpeg); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
