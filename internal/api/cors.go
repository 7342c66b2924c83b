package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// corsHeaders are sent on every response and on preflight answers. Any
// origin is allowed; the controller is meant for a trusted LAN.
var corsHeaders = http.Header{
	"Access-Control-Allow-Origin":  {"*"},
	"Access-Control-Allow-Methods": {strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}, ", ")},
	"Access-Control-Allow-Headers": {"Content-Type, Authorization, Accept, Origin, Last-Event-ID"},
	"Access-Control-Max-Age":       {strconv.Itoa(24 * 60 * 60)},
}

func corsMiddleware(ctx huma.Context, next func(huma.Context)) {
	for k, v := range corsHeaders {
		ctx.SetHeader(k, v[0])
	}
	if ctx.Method() == http.MethodOptions {
		ctx.SetStatus(http.StatusNoContent)
		return
	}
	next(ctx)
}

// handlePreflight answers OPTIONS on the mux. Huma middleware never sees
// those requests because no operation is registered for the method.
func handlePreflight(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		for k, v := range corsHeaders {
			w.Header()[k] = v
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
