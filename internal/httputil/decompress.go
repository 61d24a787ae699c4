package httputil

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/pierrec/lz4/v4"
)

// DecompressPayload replaces the request body with a decompressing reader
// for the br and lz4 content encodings.
func DecompressPayload(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		switch r.Header.Get("Content-Encoding") {
		case "br":
			r.Body = io.NopCloser(brotli.NewReader(r.Body))
			r.ContentLength = -1
		case "lz4":
			r.Body = io.NopCloser(lz4.NewReader(r.Body))
			r.ContentLength = -1
		}

		next.ServeHTTP(w, r)
	})
}
