// Package server exposes jqawk over HTTP: a buffered POST /v1/run
// endpoint and a streaming GET /v1/stream websocket endpoint, both
// behind bearer-token auth, both recorded to run history.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	cerrors "github.com/Alligator/jqawk/compiler/errors"
	icache "github.com/Alligator/jqawk/internal/cache"
	"github.com/Alligator/jqawk/internal/history"
	"github.com/Alligator/jqawk/internal/program"
	"github.com/Alligator/jqawk/vm"
)

// Server wires the program cache, run history, and JWT auth into a
// chi-routed http.Handler.
type Server struct {
	router  chi.Router
	auth    *AuthService
	cache   *icache.ProgramCache
	history history.Store
	logger  *zap.Logger
}

// New builds the HTTP handler. hist may be nil to disable history
// recording (e.g. in tests that don't care about it).
func New(auth *AuthService, progCache *icache.ProgramCache, hist history.Store, logger *zap.Logger) *Server {
	s := &Server{auth: auth, cache: progCache, history: hist, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.logRequest)

	r.Get("/healthz", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/v1/run", s.handleRun)
		r.Get("/v1/stream", s.handleStream)
	})

	s.router = r
	return s
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// requestID stamps every request with a uuid, mirroring the
// middleware.RequestID convention but using google/uuid so the id is
// also usable as the run-history correlation key.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.logger != nil {
			s.logger.Info("request",
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		}
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// authenticate requires a valid "Authorization: Bearer <token>"
// header, rejecting the request before it ever reaches the compiler.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			http.Error(w, `{"message":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		if _, err := s.auth.Validate(token); err != nil {
			http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// runRequest is the JSON body of POST /v1/run and the query-derived
// equivalent for GET /v1/stream.
type runRequest struct {
	Source   string `json:"source"`
	Selector string `json:"selector"`
	Input    string `json:"input"`
}

type runResponse struct {
	Lines []string `json:"lines,omitempty"`
	Error string   `json:"error,omitempty"`
}

func (s *Server) compile(source, selector string) ([]vm.Rule, []vm.OpCode, error) {
	rules, err := s.cached(source)
	if err != nil {
		return nil, nil, err
	}
	sel, err := program.CompileSelector(selector)
	if err != nil {
		return nil, nil, err
	}
	return rules, sel, nil
}

func (s *Server) cached(source string) ([]vm.Rule, error) {
	if s.cache == nil {
		return program.CompileRules(source)
	}
	ctx := context.Background()
	if rules, err := s.cache.Get(ctx, source); err == nil {
		return rules, nil
	}
	rules, err := program.CompileRules(source)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, source, rules)
	return rules, nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"message":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Selector == "" {
		req.Selector = program.DefaultSelector
	}

	rules, sel, err := s.compileForResponse(w, req)
	if err != nil {
		s.record(r.Context(), req, nil, err)
		return
	}

	sink := &vm.SliceSink{}
	machine := vm.New(vm.WithSink(sink))
	runErr := machine.Run(strings.NewReader(req.Input), sel, rules)

	resp := runResponse{Lines: sink.Lines}
	status := http.StatusOK
	if runErr != nil {
		resp.Error = runErr.Error()
		status = http.StatusUnprocessableEntity
	}

	s.record(r.Context(), req, sink.Lines, runErr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// compileForResponse compiles req and, on failure, writes the error
// response itself (so callers can just check for a non-nil error and
// return).
func (s *Server) compileForResponse(w http.ResponseWriter, req runRequest) ([]vm.Rule, []vm.OpCode, error) {
	rules, sel, err := s.compile(req.Source, req.Selector)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		if ce, ok := err.(*cerrors.CompileError); ok {
			json.NewEncoder(w).Encode(runResponse{Error: ce.Error()})
		} else {
			json.NewEncoder(w).Encode(runResponse{Error: err.Error()})
		}
	}
	return rules, sel, err
}

func (s *Server) record(ctx context.Context, req runRequest, lines []string, runErr error) {
	if s.history == nil {
		return
	}
	rec := history.RunRecord{
		Source:   req.Source,
		Selector: req.Selector,
		Success:  runErr == nil,
		Output:   lines,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if _, err := s.history.Record(ctx, rec); err != nil && s.logger != nil {
		s.logger.Warn("failed to record run history", zap.Error(err))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream runs a program the same way handleRun does, but pushes
// one websocket text frame per output line as the VM produces it
// instead of buffering the whole run.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := runRequest{
		Source:   q.Get("source"),
		Selector: q.Get("selector"),
		Input:    q.Get("input"),
	}
	if req.Selector == "" {
		req.Selector = program.DefaultSelector
	}

	rules, sel, err := s.compile(req.Source, req.Selector)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.record(r.Context(), req, nil, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}
	defer conn.Close()

	var lines []string
	sink := vm.FuncSink(func(line string) {
		lines = append(lines, line)
		conn.WriteMessage(websocket.TextMessage, []byte(line))
	})
	machine := vm.New(vm.WithSink(sink))
	runErr := machine.Run(strings.NewReader(req.Input), sel, rules)

	if runErr != nil {
		conn.WriteMessage(websocket.TextMessage, []byte("error: "+runErr.Error()))
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	s.record(r.Context(), req, lines, runErr)
}
