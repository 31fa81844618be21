package http

import (
	"encoding/json"
	stdhttp "net/http"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v3"

	"github.com/faeln1/go-telegram-tracker/internal/app/controllers"
	"github.com/faeln1/go-telegram-tracker/internal/platform/middleware"
)

type RouterConfig struct {
	WebhookCtrl   *controllers.WebhookController
	LinkCtrl      *controllers.LinkController
	MemberCtrl    *controllers.MemberController
	ChannelCtrl   *controllers.ChannelController
	StatsCtrl     *controllers.StatsController
	ExportCtrl    *controllers.ExportController
	Logger        *logrus.Logger
	SwaggerEnable bool
	MasterToken   string
	WebhookSecret string
}

func NewRouter(cfg RouterConfig) stdhttp.Handler {
	mux := stdhttp.NewServeMux()

	// Root endpoint - API information
	mux.HandleFunc("/", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		// Only handle exact root path
		if r.URL.Path != "/" {
			w.WriteHeader(stdhttp.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "endpoint not found",
			})
			return
		}

		if r.Method != stdhttp.MethodGet {
			w.WriteHeader(stdhttp.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "method not allowed",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"name":        "Go Telegram Tracker",
			"version":     "0.1.0",
			"description": "Membership attribution tracker for Telegram channels",
			"features": map[string]bool{
				"webhook":      true,
				"invite_links": true,
				"members":      true,
				"exits":        true,
				"channels":     true,
				"stats":        true,
				"exports":      true,
			},
			"endpoints": map[string]string{
				"health":        "/health",
				"webhook":       "/webhook/telegram",
				"documentation": "/docs",
				"openapi_yaml":  "/openapi.yaml",
				"openapi_json":  "/openapi.json",
			},
		})
	})

	mux.HandleFunc("/health", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	})

	splitSegments := func(path string) []string {
		raw := strings.Split(path, "/")
		out := make([]string, 0, len(raw))
		for _, segment := range raw {
			if segment == "" {
				continue
			}
			out = append(out, segment)
		}
		return out
	}

	// --- Documentation endpoints (if enabled) ---
	if cfg.SwaggerEnable {
		var (
			once     sync.Once
			yamlData []byte
			yamlErr  error
		)
		loadYAML := func() ([]byte, error) {
			once.Do(func() { yamlData, yamlErr = os.ReadFile("docs/openapi.yaml") })
			return yamlData, yamlErr
		}
		mux.HandleFunc("/openapi.yaml", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			data, err := loadYAML()
			if err != nil {
				w.WriteHeader(stdhttp.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
			w.Write(data)
		})
		mux.HandleFunc("/openapi.json", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			data, err := loadYAML()
			if err != nil {
				w.WriteHeader(stdhttp.StatusNotFound)
				return
			}
			var v interface{}
			if err := yaml.Unmarshal(data, &v); err != nil {
				w.WriteHeader(stdhttp.StatusInternalServerError)
				return
			}
			jsonBytes, err := json.Marshal(v)
			if err != nil {
				w.WriteHeader(stdhttp.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Write(jsonBytes)
		})
		mux.HandleFunc("/docs", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			// Simple Swagger UI (CDN)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<!DOCTYPE html><html><head><title>API Docs</title><link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/></head><body><div id="swagger-ui"></div><script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script><script>window.onload=()=>{SwaggerUIBundle({url:'/openapi.yaml',dom_id:'#swagger-ui'});};</script></body></html>`))
		})
	}

	// Telegram update receiver. Guarded by the webhook secret, not by the
	// master token: Telegram cannot send Authorization headers.
	if cfg.WebhookCtrl != nil {
		receive := stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodPost {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.WebhookCtrl.Receive(w, r)
		})
		mux.Handle("/webhook/telegram", middleware.TelegramSecret(cfg.WebhookSecret)(receive))

		// Webhook administration (registration against the Bot API).
		webhookMux := stdhttp.NewServeMux()
		webhookMux.HandleFunc("/webhook/setup", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			switch r.Method {
			case stdhttp.MethodPost:
				cfg.WebhookCtrl.Setup(w, r)
			case stdhttp.MethodDelete:
				cfg.WebhookCtrl.Remove(w, r)
			default:
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
			}
		})
		webhookMux.HandleFunc("/webhook/info", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodGet {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.WebhookCtrl.Info(w, r)
		})
		mux.Handle("/webhook/setup", masterAuth(cfg.MasterToken)(webhookMux))
		mux.Handle("/webhook/info", masterAuth(cfg.MasterToken)(webhookMux))
	}

	// Invite link routes (authenticated)
	if cfg.LinkCtrl != nil {
		linkMux := stdhttp.NewServeMux()
		linkMux.HandleFunc("/links", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			switch r.Method {
			case stdhttp.MethodGet:
				cfg.LinkCtrl.List(w, r)
			case stdhttp.MethodPost:
				cfg.LinkCtrl.Create(w, r)
			default:
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
			}
		})
		linkMux.HandleFunc("/links/", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			segments := splitSegments(strings.TrimPrefix(r.URL.Path, "/links/"))
			if len(segments) == 0 || segments[0] == "" {
				w.WriteHeader(stdhttp.StatusBadRequest)
				return
			}
			id := segments[0]
			switch {
			case len(segments) == 1:
				switch r.Method {
				case stdhttp.MethodGet:
					cfg.LinkCtrl.Get(w, r, id)
				case stdhttp.MethodDelete:
					cfg.LinkCtrl.Delete(w, r, id)
				default:
					w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				}
			case len(segments) == 2 && segments[1] == "stats":
				if r.Method != stdhttp.MethodGet {
					w.WriteHeader(stdhttp.StatusMethodNotAllowed)
					return
				}
				cfg.LinkCtrl.Stats(w, r, id)
			default:
				w.WriteHeader(stdhttp.StatusNotFound)
			}
		})
		authenticated := masterAuth(cfg.MasterToken)(linkMux)
		mux.Handle("/links", authenticated)
		mux.Handle("/links/", authenticated)
	}

	// Member and exit listings (authenticated)
	if cfg.MemberCtrl != nil {
		memberMux := stdhttp.NewServeMux()
		memberMux.HandleFunc("/members", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodGet {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.MemberCtrl.ListMembers(w, r)
		})
		memberMux.HandleFunc("/exits", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodGet {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.MemberCtrl.ListExits(w, r)
		})
		authenticated := masterAuth(cfg.MasterToken)(memberMux)
		mux.Handle("/members", authenticated)
		mux.Handle("/exits", authenticated)
	}

	// Channel configuration routes (authenticated)
	if cfg.ChannelCtrl != nil {
		channelMux := stdhttp.NewServeMux()
		channelMux.HandleFunc("/channels/config", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			switch r.Method {
			case stdhttp.MethodGet:
				cfg.ChannelCtrl.GetConfig(w, r)
			case stdhttp.MethodPut:
				cfg.ChannelCtrl.PutConfig(w, r)
			default:
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
			}
		})
		channelMux.HandleFunc("/channels/info", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodGet {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.ChannelCtrl.Info(w, r)
		})
		mux.Handle("/channels/", masterAuth(cfg.MasterToken)(channelMux))
	}

	// Stats endpoint (authenticated)
	if cfg.StatsCtrl != nil {
		statsMux := stdhttp.NewServeMux()
		statsMux.HandleFunc("/stats/overview", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodGet {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.StatsCtrl.Overview(w, r)
		})
		mux.Handle("/stats/", masterAuth(cfg.MasterToken)(statsMux))
	}

	// Export endpoints (authenticated)
	if cfg.ExportCtrl != nil {
		exportMux := stdhttp.NewServeMux()
		exportMux.HandleFunc("/exports/members.csv", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodGet {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.ExportCtrl.MembersCSV(w, r)
		})
		exportMux.HandleFunc("/exports/exits.csv", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodGet {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.ExportCtrl.ExitsCSV(w, r)
		})
		exportMux.HandleFunc("/exports/members/archive", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodPost {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.ExportCtrl.ArchiveMembers(w, r)
		})
		exportMux.HandleFunc("/exports/exits/archive", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method != stdhttp.MethodPost {
				w.WriteHeader(stdhttp.StatusMethodNotAllowed)
				return
			}
			cfg.ExportCtrl.ArchiveExits(w, r)
		})
		mux.Handle("/exports/", masterAuth(cfg.MasterToken)(exportMux))
	}

	// Middlewares wrap
	var handler stdhttp.Handler = mux
	handler = middleware.Logging(cfg.Logger)(handler)
	handler = middleware.CORS(handler) // Apply CORS to all routes
	return handler
}

func masterAuth(masterToken string) func(stdhttp.Handler) stdhttp.Handler {
	return middleware.BearerAuth(func(token string, r *stdhttp.Request) bool {
		return masterToken != "" && token == masterToken
	})
}
