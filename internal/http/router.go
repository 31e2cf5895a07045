package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Uploads    *UploadHandler
	Entries    *EntriesHandler
	Health     *HealthHandler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Uploads != nil {
		mux.HandleFunc("/payroll/uploads", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Uploads.Create(w, r)
		})
		mux.HandleFunc("/payroll/uploads/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/payroll/uploads/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}

			token, tail, _ := strings.Cut(rest, "/")
			if token == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithToken(r.Context(), token))

			switch tail {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.Uploads.Get(w, r)
				case http.MethodDelete:
					cfg.Uploads.Discard(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodDelete)
				}
			case "confirm":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Uploads.Confirm(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Entries != nil {
		mux.HandleFunc("/payroll/entries", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Entries.List(w, r)
		})
	}

	if cfg.Health != nil {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Health.Check(w, r)
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
