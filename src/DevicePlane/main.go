package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/timepledge/timepledge/src/internal/adapters/httpstore"
	"github.com/timepledge/timepledge/src/internal/adapters/memory"
	"github.com/timepledge/timepledge/src/internal/adapters/postgres"
	"github.com/timepledge/timepledge/src/internal/adapters/sqlitecache"
	"github.com/timepledge/timepledge/src/internal/clock"
	"github.com/timepledge/timepledge/src/internal/config"
	"github.com/timepledge/timepledge/src/internal/domain"
	"github.com/timepledge/timepledge/src/internal/ports"
	"github.com/timepledge/timepledge/src/internal/services"
	"github.com/timepledge/timepledge/src/internal/syncengine"
	"github.com/timepledge/timepledge/src/internal/tracker"
)

func main() {
	log.Println("Starting timepledge Device Plane...")

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	var cfg config.DevicePlaneConfig
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := config.Load(path, &cfg); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	applyDeviceEnv(&cfg)

	authority, err := clock.NewAuthority(clock.System(), cfg.ReferenceZone)
	if err != nil {
		log.Fatalf("Failed to init clock authority: %v", err)
	}

	// 1. Local cache (durable) + session store (volatile by design)
	cache := sqlitecache.NewSQLiteCache(cfg.CachePath)
	if err := cache.Init(); err != nil {
		log.Fatalf("Failed to init local cache: %v", err)
	}
	defer cache.Close()
	sessions := memory.NewSessionStore()

	// 2. Remote store: through the Control Plane in production, direct
	// Postgres in dev (avoids running both planes locally)
	var remote ports.RemoteStore
	if cfg.DatabaseURL != "" {
		log.Println("Running in DIRECT DB mode")
		db, err := postgres.NewConnection(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		store := postgres.NewUserStore(db)
		if err := store.InitSchema(); err != nil {
			log.Fatalf("Failed to init store schema: %v", err)
		}
		remote = store
	} else {
		log.Printf("Using Control Plane store at %s", cfg.ControlURL)
		remote = httpstore.NewClientStore(cfg.ControlURL)
	}

	// 3. Engine wiring
	track := tracker.NewSessionTracker(cache, sessions, authority)
	engine := syncengine.NewEngine(cache, remote, authority)
	siteSvc := services.NewSiteService(cache, engine, authority)
	loop := syncengine.NewLoop(track, engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Start(ctx)

	identity := NewOIDCIdentity(cfg.OIDC)

	syncDelay := time.Duration(cfg.SyncDelayMin) * time.Minute
	syncEvery := time.Duration(cfg.SyncEveryMin) * time.Minute

	mux := http.NewServeMux()

	// --- Session lifecycle ---

	mux.HandleFunc("/api/v1/session/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		principal, err := identity.Verify(r.Context(), token)
		if err != nil {
			http.Error(w, "Invalid token: "+err.Error(), http.StatusUnauthorized)
			return
		}
		if !principal.Verified {
			// Unverified accounts never sync
			http.Error(w, "Email not verified", http.StatusForbidden)
			return
		}

		sess := syncengine.NewSession(principal, authority.Now())
		doc, err := engine.Login(r.Context(), sess)
		if err != nil {
			http.Error(w, "Login sync failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		loop.BeginSession(ctx, sess, syncDelay, syncEvery)

		// Re-check the focused tab against the fresh site list so a site
		// tracked from another device starts accruing immediately
		var body struct {
			CurrentTab *struct {
				TabID  int    `json:"tabId"`
				Domain string `json:"domain"`
			} `json:"currentTab"`
		}
		if json.NewDecoder(r.Body).Decode(&body) == nil && body.CurrentTab != nil {
			if err := track.RecheckFocus(r.Context(), body.CurrentTab.TabID, body.CurrentTab.Domain, authority.Now()); err != nil {
				log.Printf("Focus re-check after login failed: %v", err)
			}
		}

		writeJSON(w, loginResponse(doc))
	})

	mux.HandleFunc("/api/v1/session/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess := loop.Session()
		if sess == nil {
			http.Error(w, "Not logged in", http.StatusUnauthorized)
			return
		}

		// Push happens-before teardown; a failed push is logged inside
		if err := engine.Logout(r.Context(), sess); err != nil {
			http.Error(w, "Logout failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		loop.EndSession()
		sessions.Clear()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/v1/session/app-open", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess := loop.Session()
		if sess == nil {
			http.Error(w, "Not logged in", http.StatusUnauthorized)
			return
		}

		doc, err := engine.AppOpen(r.Context(), sess)
		if err != nil {
			http.Error(w, "Sync failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, loginResponse(doc))
	})

	// --- Host tab events ---

	mux.HandleFunc("/api/v1/events/tab-changed", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var ev struct {
			TabID  int       `json:"tabId"`
			Domain string    `json:"domain"`
			At     time.Time `json:"at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ev.At.IsZero() {
			ev.At = authority.Now()
		}
		loop.Post(syncengine.FocusChanged{TabID: ev.TabID, Domain: ev.Domain, At: ev.At})
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/api/v1/events/tab-closed", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var ev struct {
			TabID int       `json:"tabId"`
			At    time.Time `json:"at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ev.At.IsZero() {
			ev.At = authority.Now()
		}
		loop.Post(syncengine.TabClosed{TabID: ev.TabID, At: ev.At})
		w.WriteHeader(http.StatusAccepted)
	})

	// --- Presentation surface: tracked sites ---

	mux.HandleFunc("/api/v1/sites", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			statuses, err := track.SiteStatuses(r.Context(), authority.Now())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, statuses)

		case http.MethodPost:
			var req struct {
				URL         string `json:"url"`
				LimitMillis int64  `json:"limitMillis"`
				Period      string `json:"period"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			site, err := siteSvc.Add(r.Context(), loop.Session(), req.URL, req.LimitMillis, domain.PeriodKind(req.Period))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, site)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/sites/", func(w http.ResponseWriter, r *http.Request) {
		siteDomain := strings.TrimPrefix(r.URL.Path, "/api/v1/sites/")
		if siteDomain == "" {
			http.Error(w, "domain required", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodPut:
			var req struct {
				LimitMillis int64  `json:"limitMillis"`
				Period      string `json:"period"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			site, err := siteSvc.Edit(r.Context(), loop.Session(), siteDomain, req.LimitMillis, domain.PeriodKind(req.Period))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, site)

		case http.MethodDelete:
			if err := siteSvc.Remove(r.Context(), loop.Session(), siteDomain); err != nil {
				writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusOK)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/tracking/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := siteSvc.ClearTracking(r.Context(), loop.Session()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// --- Presentation surface: wallet / charity / daily result ---

	mux.HandleFunc("/api/v1/wallet", func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, loop, http.MethodGet)
		if !ok {
			return
		}
		doc, err := engine.Document(r.Context(), sess)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{
			"walletBalance":   doc.WalletBalanceCents,
			"totalDonated":    doc.TotalDonatedCents,
			"selectedCharity": doc.SelectedCharity,
		})
	})

	mux.HandleFunc("/api/v1/charity", func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, loop, http.MethodPut)
		if !ok {
			return
		}
		var req struct {
			Charity string `json:"charity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := engine.SaveCharity(r.Context(), sess, req.Charity); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/v1/daily-result", func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, loop, http.MethodGet)
		if !ok {
			return
		}
		doc, err := engine.Document(r.Context(), sess)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		if doc.DailyResult == nil || doc.DailyResult.Seen {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, doc.DailyResult)
	})

	mux.HandleFunc("/api/v1/daily-result/dismiss", func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, loop, http.MethodPost)
		if !ok {
			return
		}
		if err := engine.DismissDailyResult(r.Context(), sess); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// --- Diagnostics ---

	mux.HandleFunc("/api/v1/active-session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		active := track.ActiveSession()
		if active == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, active)
	})

	mux.HandleFunc("/api/v1/sync-status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.Status())
	})

	log.Printf("Device Plane listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func applyDeviceEnv(cfg *config.DevicePlaneConfig) {
	if v := os.Getenv("CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if cfg.CachePath == "" {
		cfg.CachePath = "data/cache.db"
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if cfg.Port == "" {
		cfg.Port = "8710"
	}
	if v := os.Getenv("CONTROL_PLANE_URL"); v != "" {
		cfg.ControlURL = v
	}
	if cfg.ControlURL == "" && cfg.DatabaseURL == "" {
		cfg.ControlURL = "http://localhost:8711"
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("OIDC_PROVIDER"); v != "" {
		cfg.OIDC.ProviderURL = v
	}
	if v := os.Getenv("OIDC_CLIENT_ID"); v != "" {
		cfg.OIDC.ClientID = v
	}
	if cfg.SyncDelayMin <= 0 {
		cfg.SyncDelayMin = 1 // wait after login so the first tick can't race the login sync
	}
	if cfg.SyncEveryMin <= 0 {
		cfg.SyncEveryMin = 15
	}
}

func requireSession(w http.ResponseWriter, r *http.Request, loop *syncengine.Loop, method string) (*syncengine.Session, bool) {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	sess := loop.Session()
	if sess == nil {
		http.Error(w, "Not logged in", http.StatusUnauthorized)
		return nil, false
	}
	return sess, true
}

func loginResponse(doc *domain.UserDocument) map[string]any {
	resp := map[string]any{
		"email":           doc.Email,
		"sites":           doc.Sites,
		"walletBalance":   doc.WalletBalanceCents,
		"totalDonated":    doc.TotalDonatedCents,
		"selectedCharity": doc.SelectedCharity,
	}
	if doc.DailyResult != nil && !doc.DailyResult.Seen {
		resp["dailyResult"] = doc.DailyResult
	}
	return resp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrInvalidDomain, domain.ErrInvalidLimit, domain.ErrInvalidPeriod:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case domain.ErrDuplicateSite:
		http.Error(w, err.Error(), http.StatusConflict)
	case domain.ErrSiteNotTracked:
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
