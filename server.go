package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/1f349/cache"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

const maxRequestBytes = 1 << 20

type shuffleRequest struct {
	Values     []int32 `json:"values"`
	Seed       *int64  `json:"seed"`
	Split      *int    `json:"split"`
	Partitions int     `json:"partitions"`
}

// Server runs shuffles on request and keeps results around for a while.
type Server struct {
	runner  *Runner
	results *cache.Cache[uuid.UUID, RunResult]
	router  *httprouter.Router

	mu   sync.RWMutex
	conf Config
}

func NewServer(runner *Runner, metrics *Metrics, conf Config) *Server {
	s := &Server{
		runner:  runner,
		results: cache.New[uuid.UUID, RunResult](),
		router:  httprouter.New(),
		conf:    conf,
	}
	s.router.POST("/shuffle", s.handleShuffle)
	s.router.GET("/shuffle/:id", s.handleResult)
	s.router.Handler(http.MethodGet, "/metrics", metrics.Handler())
	return s
}

// SetConfig swaps the defaults used for requests that leave out the seed or
// the partitioning.
func (s *Server) SetConfig(conf Config) {
	s.mu.Lock()
	s.conf = conf
	s.mu.Unlock()
}

func (s *Server) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conf
}

// ServeHTTP dispatches to the shuffle, result and metrics routes.
func (s *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(rw, req)
}

func (s *Server) handleShuffle(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body shuffleRequest
	req.Body = http.MaxBytesReader(rw, req.Body, maxRequestBytes)
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(rw, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(rw, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	conf := s.config()
	// a configured split index belongs to the configured values, so requests
	// only inherit the partition count
	conf.Split = nil
	if body.Split != nil || body.Partitions != 0 {
		conf.Split, conf.Partitions = body.Split, body.Partitions
	}
	if err := conf.Validate(); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	seed := DefaultSeed()
	switch {
	case body.Seed != nil:
		seed = *body.Seed
	case conf.Seed != nil:
		seed = *conf.Seed
	}

	res, err := s.runner.Run(req.Context(), body.Values, seed, conf.Partitioner())
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(rw, "Shuffle failed", http.StatusInternalServerError)
		return
	}
	if conf.CacheTTL > 0 {
		s.results.Set(res.ID, res, time.Now().Add(conf.CacheTTL))
	}
	writeJSON(rw, res)
}

func (s *Server) handleResult(rw http.ResponseWriter, req *http.Request, params httprouter.Params) {
	id, err := uuid.Parse(params.ByName("id"))
	if err != nil {
		http.Error(rw, "Invalid run id", http.StatusBadRequest)
		return
	}
	res, ok := s.results.Get(id)
	if !ok {
		http.Error(rw, "Unknown or expired run", http.StatusNotFound)
		return
	}
	writeJSON(rw, res)
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(v)
}
