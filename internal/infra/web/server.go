package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-response-queue/internal/infra/worker"
	"ai-response-queue/internal/usecase"
)

// Server wires the pipeline's HTTP surface: the enqueue endpoint, the worker
// endpoint (hinted and sweep), the job/update read side, and housekeeping.
type Server struct {
	enqueueUC  usecase.EnqueueUseCase
	queue      usecase.QueueService
	executor   *worker.Executor
	dispatcher *HintDispatcher
	secret     string
	dev        bool
	sweepLimit int
	log        *zerolog.Logger
}

func NewServer(
	enqueueUC usecase.EnqueueUseCase,
	queue usecase.QueueService,
	executor *worker.Executor,
	dispatcher *HintDispatcher,
	secret string,
	dev bool,
	sweepLimit int,
	logger *zerolog.Logger,
) *Server {
	if sweepLimit <= 0 {
		sweepLimit = 10
	}
	return &Server{
		enqueueUC:  enqueueUC,
		queue:      queue,
		executor:   executor,
		dispatcher: dispatcher,
		secret:     secret,
		dev:        dev,
		sweepLimit: sweepLimit,
		log:        logger,
	}
}

// Router builds the chi mux for the whole service.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Post("/api/v1/conversations/{conversationID}/messages", s.handleEnqueue)
	r.Get("/api/v1/jobs/{jobID}", s.handleGetJob)
	r.Get("/api/v1/jobs/{jobID}/updates", s.handleListUpdates)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/internal/v1/worker/run", s.handleWorkerRun)
		r.Post("/internal/v1/worker/cleanup", s.handleCleanup)
	})

	r.Get("/internal/v1/worker/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// authMiddleware guards the worker routes with a shared Bearer secret. Dev
// deployments may run without one; production must not.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			if s.dev {
				next.ServeHTTP(w, r)
				return
			}
			s.log.Error().Msg("worker secret is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.secret {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
