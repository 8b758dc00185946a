package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"steadrent/core"
	"steadrent/crypto"
	"steadrent/observability"
	"steadrent/rpc/middleware"
)

const (
	jsonRPCVersion         = "2.0"
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// ServerConfig tunes the JSON-RPC listener.
type ServerConfig struct {
	Auth         middleware.AuthConfig
	RateLimit    middleware.RateLimit
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Tracing      bool
	LogRequests  bool
}

type Server struct {
	node    *core.Node
	cfg     ServerConfig
	logger  *slog.Logger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	httpSrv *http.Server
}

func NewServer(node *core.Node, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxRequestBytes
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return nil, fmt.Errorf("rpc: authentication enabled without a secret")
	}
	return &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "rpc")),
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		limiter: middleware.NewRateLimiter(cfg.RateLimit, logger),
		obs:     middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: "steadd", LogRequests: cfg.LogRequests}, logger),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.obs.MetricsHandler())
	r.Group(func(gr chi.Router) {
		gr.Use(s.obs.Middleware("jsonrpc"))
		gr.Use(s.limiter.Middleware())
		gr.Post("/", s.handle)
	})
	r.With(s.obs.Middleware("events"), s.auth.Middleware()).Get("/ws/events", s.handleEventsWS)

	if s.cfg.Tracing {
		return otelhttp.NewHandler(r, "steadd-rpc")
	}
	return r
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.logger.Info("json-rpc listening", slog.String("addr", listener.Addr().String()))
	err := s.httpSrv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	var (
		fn       handlerFunc
		mutating bool
	)
	switch req.Method {
	case "stead_initConfig":
		fn, mutating = s.handleInitConfig, true
	case "stead_setConfig":
		fn, mutating = s.handleSetConfig, true
	case "stead_getConfig":
		fn = s.handleGetConfig
	case "stead_listEvents":
		fn = s.handleListEvents
	case "exhibition_open":
		fn, mutating = s.handleExhibitionOpen, true
	case "exhibition_cancel":
		fn, mutating = s.handleExhibitionCancel, true
	case "exhibition_close":
		fn, mutating = s.handleExhibitionClose, true
	case "exhibition_deposit":
		fn, mutating = s.handleExhibitionDeposit, true
	case "exhibition_withdraw":
		fn, mutating = s.handleExhibitionWithdraw, true
	case "exhibition_purchase":
		fn, mutating = s.handleExhibitionPurchase, true
	case "exhibition_get":
		fn = s.handleExhibitionGet
	case "exhibition_getItem":
		fn = s.handleExhibitionGetItem
	case "exhibition_derive":
		fn = s.handleExhibitionDerive
	case "ledger_getBalance":
		fn = s.handleLedgerGetBalance
	case "ledger_getHolding":
		fn = s.handleLedgerGetHolding
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
		return
	}

	module, _, _ := strings.Cut(req.Method, "_")
	rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	defer func() {
		observability.ModuleMetrics().Observe(module, req.Method, rec.status, time.Since(start))
	}()

	if mutating {
		authed, authErr := s.auth.Authorize(r)
		if authErr != nil {
			observability.ModuleMetrics().RecordThrottle(module, "unauthorized")
			writeError(rec, http.StatusUnauthorized, req.ID, codeUnauthorized, authErr.Error(), nil)
			return
		}
		r = authed
	}
	fn(rec, r, req)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// decodeParams expects exactly one parameter object and rejects unknown
// fields.
func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func parseIdentity(field, value string) (crypto.Identity, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.ZeroIdentity, fmt.Errorf("%s required", field)
	}
	id, err := crypto.ParseIdentity(trimmed)
	if err != nil {
		return crypto.ZeroIdentity, fmt.Errorf("%s: %w", field, err)
	}
	return id, nil
}

func parseOptionalIdentity(field, value string) (crypto.Identity, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.ZeroIdentity, nil
	}
	return parseIdentity(field, value)
}

func parseAmount(field, value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%s required", field)
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an unsigned 64-bit integer", field)
	}
	return amount, nil
}

func invalidParams(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid_params", err.Error())
}
