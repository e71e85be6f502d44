// Package mockserver is a stand-in cluster: the REST contract and the
// WebSocket hub the dashboard client talks to, backed by an in-memory
// snapshot. It exists for demos and end-to-end tests.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/event"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/store"
)

// Options configures a Server.
type Options struct {
	// Token, when set, is required as a bearer token on /api and /ws.
	Token string
	// Heartbeat is the hub heartbeat period. Zero uses 30s; negative
	// disables heartbeats.
	Heartbeat time.Duration
	Log       logger.Logger
}

// Server serves the mock cluster.
type Server struct {
	mu      sync.Mutex
	state   *store.Store
	hub     *Hub
	router  chi.Router
	token   string
	log     logger.Logger
	version string
}

// New creates a server seeded with snap.
func New(snap store.Snapshot, opts Options) *Server {
	hb := opts.Heartbeat
	if hb == 0 {
		hb = 30 * time.Second
	}
	log := logger.OrDefault(opts.Log)

	st := store.New(store.DefaultWindow * 10)
	st.Load(snap)

	s := &Server{
		state:   st,
		hub:     NewHub(hb, log),
		token:   opts.Token,
		log:     log,
		version: "mock",
	}
	if snap.Cluster != nil && snap.Cluster.Version != "" {
		s.version = snap.Cluster.Version
	}
	s.setupRouter()
	return s
}

// LoadSeed reads a snapshot file written by 'cw export'.
func LoadSeed(path string) (store.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return store.Snapshot{}, cwerrors.WrapWithCode(err, cwerrors.ErrConfig,
			"Can't open seed file "+path, "Create one with 'cw export FILE'")
	}
	defer f.Close()
	return store.ReadSnapshot(f)
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// State returns a copy of the current cluster data.
func (s *Server) State() store.Snapshot {
	return s.state.Snapshot()
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/ws", s.hub.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Get("/cluster/status", s.getClusterStatus)
			r.Get("/metrics", s.getMetrics)

			r.Get("/nodes", s.listNodes)
			r.Put("/nodes/{id}", s.updateNode)
			r.Delete("/nodes/{id}", s.deleteNode)

			r.Get("/models", s.listModels)
			r.Post("/models/{name}", s.pullModel)
			r.Put("/models/{name}", s.updateModel)
			r.Delete("/models/{name}", s.deleteModel)

			r.Get("/users", s.listUsers)
			r.Put("/users/{id}", s.updateUser)
			r.Delete("/users/{id}", s.deleteUser)
		})
	})
	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.log.Debug("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(),
				time.Since(start).Round(time.Microsecond), chimiddleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run drives the hub until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.hub.Run(ctx)
}

// ListenAndServe serves on addr until ctx is done. ready, if non-nil,
// receives the bound address once listening.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(addr string)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Can't listen on "+addr, "Pick a free address with --addr")
	}

	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go s.hub.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if ready != nil {
		ready(ln.Addr().String())
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Simulate broadcasts jittered metrics and node load every interval until
// ctx is done.
func (s *Server) Simulate(ctx context.Context, interval time.Duration, rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now, rng)
		}
	}
}

func (s *Server) tick(now time.Time, rng *rand.Rand) {
	s.mu.Lock()
	var cpu, mem float64
	nodes := s.state.Nodes()
	for i := range nodes {
		n := &nodes[i]
		if !n.Status.IsUp() {
			continue
		}
		n.CPU = jitter(n.CPU, 8, rng)
		n.Memory = jitter(n.Memory, 3, rng)
		cpu += n.CPU
		mem += n.Memory
		s.state.UpsertNode(model.NodePatch{ID: n.ID, CPU: &n.CPU, Memory: &n.Memory})
	}
	up := 0
	for _, n := range nodes {
		if n.Status.IsUp() {
			up++
		}
	}
	values := map[string]float64{}
	if up > 0 {
		values["cpu"] = round2(cpu / float64(up))
		values["memory"] = round2(mem / float64(up))
	}
	values["requests_per_second"] = round2(math.Max(0, jitter(40, 15, rng)))
	s.state.AppendMetrics(now, values)
	s.mu.Unlock()

	for _, n := range nodes {
		if n.Status.IsUp() {
			cpu, mem := n.CPU, n.Memory
			s.hub.Emit(event.NodeUpdate{Patch: model.NodePatch{ID: n.ID, CPU: &cpu, Memory: &mem}})
		}
	}
	samples := make([]event.Sample, 0, len(values))
	for name, v := range values {
		samples = append(samples, event.Sample{Name: name, Value: v})
	}
	s.hub.Emit(event.Metrics{Timestamp: now.UTC(), Samples: samples})
}

func jitter(v, spread float64, rng *rand.Rand) float64 {
	v += (rng.Float64()*2 - 1) * spread
	return round2(math.Min(100, math.Max(0, v)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Server) clusterStatus() model.ClusterStatus {
	snap := s.state.Snapshot()
	cs := model.ClusterStatus{Status: "healthy", Version: s.version}
	if snap.Cluster != nil {
		cs = *snap.Cluster
	}
	cs.NodeCount = len(snap.Nodes)
	cs.ModelCount = len(snap.Models)
	cs.HealthyNodes = 0
	for _, n := range snap.Nodes {
		if n.Status.IsUp() {
			cs.HealthyNodes++
		}
	}
	switch {
	case cs.NodeCount == 0:
		cs.Status = "empty"
	case cs.HealthyNodes == cs.NodeCount:
		cs.Status = "healthy"
	case cs.HealthyNodes == 0:
		cs.Status = "down"
	default:
		cs.Status = "degraded"
	}
	if cs.Leader == "" && len(snap.Nodes) > 0 {
		cs.Leader = snap.Nodes[0].ID
	}
	cs.UpdatedAt = time.Now().UTC()
	return cs
}

// publishCluster recomputes the summary and pushes it to subscribers.
func (s *Server) publishCluster() {
	s.hub.Emit(event.ClusterStatus{Status: s.clusterStatus()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func action(r *http.Request) (string, error) {
	var body struct {
		Action string `json:"action"`
	}
	if err := decodeBody(r, &body); err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(body.Action)), nil
}
