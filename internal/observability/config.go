package observability

import (
	nethttp "net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
)

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprof bool
}

// Mount registers the runtime profiling endpoints under /debug/pprof when
// enabled.
func (c Config) Mount(router *mux.Router) {
	if !c.EnablePprof || router == nil {
		return
	}
	sub := router.PathPrefix("/debug/pprof").Subrouter()
	sub.HandleFunc("/cmdline", pprof.Cmdline)
	sub.HandleFunc("/profile", pprof.Profile)
	sub.HandleFunc("/symbol", pprof.Symbol)
	sub.HandleFunc("/trace", pprof.Trace)
	sub.PathPrefix("/").Handler(nethttp.HandlerFunc(pprof.Index))
}
