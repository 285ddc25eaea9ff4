// Package api is the HTTP order-intake surface and the WebSocket
// market-data fan-out. All validation happens here; the engine behind
// the service only ever sees well-formed orders.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"helix/domain/book"
	"helix/service"
)

const defaultDepth = 20

// Server handles REST order intake and WebSocket market data.
type Server struct {
	svc    *service.OrderService
	router *mux.Router
	hub    *Hub
	log    *zap.Logger
	http   *http.Server
}

// NewServer builds the router and hub around an order service.
func NewServer(svc *service.OrderService, log *zap.Logger) *Server {
	s := &Server{
		svc:    svc,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/markets/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/bbo", s.handleGetBBO).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.http = &http.Server{Addr: addr, Handler: c.Handler(s.router)}
	s.log.Info("api server starting", zap.String("addr", addr))
	return s.http.ListenAndServe()
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler { return s.router }

// ==============================
// REST handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	o, err := req.ToOrder(time.Now())
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid order", err.Error())
		return
	}

	trades := s.svc.Submit(o)
	if trades == nil {
		trades = []book.Trade{}
	}
	s.log.Info("order submitted",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("side", o.Side.String()),
		zap.String("type", o.Type.String()),
		zap.Int("trades", len(trades)))

	respondJSON(w, SubmitOrderResponse{
		OrderID: o.ID,
		Status:  statusFor(o, trades),
		Trades:  trades,
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusUnprocessableEntity, "invalid cancel", "order_id is required")
		return
	}

	ok := s.svc.Cancel(req.OrderID)
	s.log.Info("cancel requested", zap.String("order_id", req.OrderID), zap.Bool("cancelled", ok))
	respondJSON(w, CancelOrderResponse{OrderID: req.OrderID, Cancelled: ok})
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	depth := defaultDepth
	if q := r.URL.Query().Get("depth"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid depth", "")
			return
		}
		depth = n
	}

	respondJSON(w, s.snapshotOrderbook(symbol, depth))
}

func (s *Server) handleGetBBO(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.snapshotBBO(mux.Vars(r)["symbol"]))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Market-data broadcasting
// ==============================

// PublishTrades implements service.TradeSink: each trade goes to the
// symbol's trades channel.
func (s *Server) PublishTrades(symbol string, trades []book.Trade) {
	for _, t := range trades {
		s.hub.BroadcastToChannel(fmtChannel("trades", symbol), t)
	}
}

// BookChanged implements service.BookWatcher: push a fresh depth
// snapshot and BBO to subscribers of the symbol.
func (s *Server) BookChanged(symbol string) {
	s.hub.BroadcastToChannel(fmtChannel("orderbook", symbol), s.snapshotOrderbook(symbol, defaultDepth))
	s.hub.BroadcastToChannel(fmtChannel("bbo", symbol), s.snapshotBBO(symbol))
}

func (s *Server) snapshotOrderbook(symbol string, depth int) OrderbookSnapshot {
	bids, asks := s.svc.Engine().Depth(symbol, depth)
	if bids == nil {
		bids = []book.DepthEntry{}
	}
	if asks == nil {
		asks = []book.DepthEntry{}
	}
	return OrderbookSnapshot{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (s *Server) snapshotBBO(symbol string) BBO {
	out := BBO{Symbol: symbol, Timestamp: time.Now().UnixMilli()}
	if bid, ok := s.svc.Engine().BestBid(symbol); ok {
		out.Bid = &bid
	}
	if ask, ok := s.svc.Engine().BestAsk(symbol); ok {
		out.Ask = &ask
	}
	return out
}

// ==============================
// Helpers
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}
