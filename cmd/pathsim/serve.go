package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pathfinder/internal/agent"
	"pathfinder/internal/director"
	"pathfinder/internal/geom"
	"pathfinder/internal/terrain"
)

// strategies a route request may ask for
var strategies = []string{director.StrategySearch, director.StrategyLookAhead}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type RouteRequest struct {
	Start    Point   `json:"start"`
	Target   Point   `json:"target"`
	Strategy string  `json:"strategy,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
	MaxTicks int     `json:"maxTicks,omitempty"`
}

type RouteResponse struct {
	Path     []Point `json:"path"`
	Success  bool    `json:"success"`
	Died     bool    `json:"died,omitempty"`
	Ticks    int     `json:"ticks"`
	Distance float64 `json:"distance,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// server answers route requests on one map. Every request walks a fresh
// agent, so deaths from earlier requests steer later ones.
type server struct {
	world    *terrain.Map
	factory  *director.Factory
	strategy string
	speed    float64
	maxTicks int
	registry *prometheus.Registry
	logger   *slog.Logger
}

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve routes over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(cmd)
			if err != nil {
				return err
			}
			world, err := buildWorld(cfg.Map, logger)
			if err != nil {
				return err
			}
			reg, m := newMetrics()
			factory, err := newFactory(cfg, world, m, logger)
			if err != nil {
				return err
			}
			s := &server{
				world:    world,
				factory:  factory,
				strategy: cfg.Agents.Strategy,
				speed:    cfg.Agents.Speed,
				maxTicks: cfg.Sim.MaxTicks,
				registry: reg,
				logger:   logger,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.listen(ctx, cfg.Server.Addr)
		},
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/route", corsMiddleware(s.routeHandler))
	mux.HandleFunc("/health", corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *server) listen(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("server starting", "addr", addr, "map", s.world.ID(), "strategy", s.strategy)
	s.logger.Info("endpoint", "route", "POST /route", "about", "walk an agent from start to target")
	s.logger.Info("endpoint", "route", "GET /health", "about", "map and hazard status")
	s.logger.Info("endpoint", "route", "GET /metrics", "about", "prometheus metrics")

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *server) routeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.logger.Warn("method not allowed", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("invalid request body", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Strategy == "" {
		req.Strategy = s.strategy
	}
	if req.Speed <= 0 {
		req.Speed = s.speed
	}
	if req.MaxTicks <= 0 || req.MaxTicks > s.maxTicks {
		req.MaxTicks = s.maxTicks
	}
	if !slices.Contains(strategies, req.Strategy) {
		http.Error(w, "Unknown strategy", http.StatusBadRequest)
		return
	}

	start := orb.Point{req.Start.X, req.Start.Y}
	target := geom.Floor(orb.Point{req.Target.X, req.Target.Y})
	if _, ok := s.world.TerrainAt(s.world.ParcelOf(start)); !ok {
		http.Error(w, "Start is off the map", http.StatusBadRequest)
		return
	}
	if _, ok := s.world.TerrainAt(s.world.ParcelOf(target.Point())); !ok {
		http.Error(w, "Target is off the map", http.StatusBadRequest)
		return
	}

	s.logger.Info("route request received", "start", geom.Floor(start).String(),
		"target", target.String(), "strategy", req.Strategy)

	p := agent.New("route", s.world, start,
		func() (director.Director, error) { return s.factory.New(req.Strategy) },
		agent.WithSpeed(req.Speed),
		agent.WithLogger(s.logger))
	if err := p.SetTarget(target); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for tick := 0; tick < req.MaxTicks && !p.Done(); tick++ {
		if r.Context().Err() != nil {
			return
		}
		p.Tick()
	}

	path := p.Path()
	resp := RouteResponse{
		Path:    make([]Point, len(path)),
		Success: p.Arrived(),
		Died:    !p.Alive(),
		Ticks:   p.Ticks(),
	}
	for i, pt := range path {
		resp.Path[i] = Point{X: pt[0], Y: pt[1]}
		if i > 0 {
			resp.Distance += geom.Distance(path[i-1], pt)
		}
	}
	switch {
	case resp.Died:
		resp.Message = "Agent died in water"
	case !resp.Success:
		resp.Message = "Target not reached within tick limit"
	}

	s.logger.Info("route finished", "success", resp.Success, "died", resp.Died,
		"ticks", resp.Ticks, "waypoints", len(resp.Path), "distance", resp.Distance)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GET /health - map and hazard status
func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	deaths := map[string]int64{}
	for _, name := range strategies {
		if reg, ok := s.factory.Hazards(name); ok {
			deaths[name] = reg.For(s.world).Total()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ready",
		"map":      s.world.ID(),
		"width":    s.world.Width(),
		"height":   s.world.Height(),
		"water":    s.world.Count(terrain.Water),
		"strategy": s.strategy,
		"deaths":   deaths,
	})
}
