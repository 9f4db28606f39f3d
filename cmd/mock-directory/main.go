// Command mock-directory stands in for the GitHub teams and invitations
// endpoints during local end-to-end runs.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/buildin7days/entitlements/internal/logging"
)

type mockConfig struct {
	Port   int               `env:"MOCK_PORT" envDefault:"8081"`
	Token  string            `env:"MOCK_GITHUB_TOKEN"`
	Teams  map[string]string `env:"MOCK_TEAMS" envDefault:"customers-scale-boilerplate:4242"`
	AppEnv string            `env:"APP_ENV" envDefault:"development"`
}

type invitation struct {
	ID      int64   `json:"id"`
	Email   string  `json:"email"`
	Role    string  `json:"role"`
	TeamIDs []int64 `json:"team_ids"`
}

type mockDirectory struct {
	token string
	teams map[string]int64

	mu      sync.Mutex
	invites []invitation
}

func parseTeams(raw map[string]string) (map[string]int64, error) {
	teams := make(map[string]int64, len(raw))
	for slug, id := range raw {
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("parseTeams: team %q has invalid id %q", slug, id)
		}
		teams[strings.TrimSpace(slug)] = n
	}
	return teams, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func (m *mockDirectory) authorized(r *http.Request) bool {
	if m.token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+m.token
}

func (m *mockDirectory) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /orgs/{org}/teams/{slug}", func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		slug := r.PathValue("slug")
		id, ok := m.teams[slug]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "slug": slug, "organization": r.PathValue("org")})
	})

	mux.HandleFunc("POST /orgs/{org}/invitations", func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		var inv invitation
		if err := json.NewDecoder(r.Body).Decode(&inv); err != nil || inv.Email == "" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Validation Failed"})
			return
		}

		m.mu.Lock()
		inv.ID = int64(len(m.invites) + 1)
		m.invites = append(m.invites, inv)
		m.mu.Unlock()

		slog.Info("invitation created",
			"org", r.PathValue("org"),
			"email", inv.Email,
			"role", inv.Role,
			"team_ids", inv.TeamIDs,
		)
		writeJSON(w, http.StatusCreated, inv)
	})
	return mux
}

func main() {
	cfg, err := env.ParseAs[mockConfig]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init("mock-directory", "info", cfg.AppEnv)

	teams, err := parseTeams(cfg.Teams)
	if err != nil {
		slog.Error("invalid MOCK_TEAMS", "error", err)
		os.Exit(1)
	}

	m := &mockDirectory{token: cfg.Token, teams: teams}
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("mock directory started", "addr", addr, "teams", len(teams))
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
