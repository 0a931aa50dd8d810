package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider/providertest"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "DemoPassw0rd"
)

// serveConfig holds flags for the serve command.
type serveConfig struct {
	addr     string
	backends backendFlags
}

func newServeCmd(g *globalFlags) *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve demo routes behind the access gate",
		Long: `Serve a small HTTP app whose routes are guarded by sign-in, role and
feature requirements, with sign-in/sign-out endpoints and Prometheus
metrics on /metrics. Without --gotrue-url a demo account is seeded in the
in-memory provider.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engineCfg, err := g.config()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, engineCfg, cfg, g.logger(cmd.ErrOrStderr()))
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", ":8080", "listen address")
	cfg.backends.register(cmd)

	return cmd
}

func runServe(ctx context.Context, engineCfg goSession.Config, cfg *serveConfig, logger *slog.Logger) error {
	store, closeStore, err := cfg.backends.openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	gw, fake, closeGateway, err := cfg.backends.openGateway(logger)
	if err != nil {
		return err
	}
	defer closeGateway()

	if fake != nil {
		if err := seedDemo(ctx, fake, store); err != nil {
			return err
		}
	}

	engine, err := goSession.New().
		WithConfig(engineCfg).
		WithProvider(gw).
		WithProfileStore(store).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           newRouter(engine),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "listening", "addr", cfg.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.InfoContext(shutdownCtx, "shutting down")
	return srv.Shutdown(shutdownCtx)
}

// seedDemo registers the demo account with a manager/pro profile.
func seedDemo(ctx context.Context, fake *providertest.Fake, store profile.Store) error {
	id := fake.AddUser(demoEmail, demoPassword, true)
	now := time.Now().UTC()
	return store.Insert(ctx, &profile.Profile{
		ID:               id.ID,
		Email:            demoEmail,
		FullName:         "Demo User",
		BusinessName:     "Demo Co",
		Role:             "manager",
		SubscriptionTier: "pro",
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resultBody struct {
	OperationID string `json:"operation_id"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	RetryAfter  string `json:"retry_after,omitempty"`
}

type stateBody struct {
	Status   string   `json:"status"`
	Email    string   `json:"email,omitempty"`
	Role     string   `json:"role,omitempty"`
	Tier     string   `json:"tier,omitempty"`
	Features []string `json:"features,omitempty"`
}

// newRouter mounts the demo routes on a chi router.
func newRouter(engine *goSession.Engine) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", prometheus.NewCollector(engine).Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signin", func(w http.ResponseWriter, r *http.Request) {
			var c credentials
			if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
				writeJSON(w, http.StatusBadRequest, resultBody{Error: "invalid request body"})
				return
			}
			writeResult(w, engine.SignIn(r.Context(), c.Email, c.Password))
		})
		r.Post("/signout", func(w http.ResponseWriter, r *http.Request) {
			writeResult(w, engine.SignOut(r.Context()))
		})
		r.Get("/signin", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"returnTo": r.URL.Query().Get("returnTo")})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSignIn(engine))
		r.Get("/dashboard", stateHandler(engine))
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireFeature(engine, "analytics"))
		r.Get("/analytics", stateHandler(engine))
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(engine, "admin"))
		r.Get("/admin", stateHandler(engine))
	})

	return r
}

func stateHandler(engine *goSession.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := goSession.AuthStateFromContext(r.Context())
		if !ok {
			s = engine.State()
		}
		body := stateBody{Status: string(s.Status), Role: s.Role(), Tier: s.Tier()}
		if s.Identity != nil {
			body.Email = s.Identity.Email
		}
		if s.Tier() != "" {
			body.Features = engine.Features()
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeResult(w http.ResponseWriter, res goSession.Result) {
	body := resultBody{OperationID: res.OperationID, Success: res.Success, Error: res.Error}
	status := http.StatusOK
	switch {
	case res.Success:
	case errors.Is(res.Err, goSession.ErrRateLimited):
		status = http.StatusTooManyRequests
		body.RetryAfter = res.RetryAfter.Round(time.Second).String()
	case errors.Is(res.Err, goSession.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(res.Err, goSession.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	default:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
