// Package httpapi is the read-only HTTP/WS boundary a chart renderer
// subscribes to. It never computes structure itself — it only reads cached
// snapshots and relays newly confirmed endpoints pushed onto its hub.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawpanic/czsc/internal/snapshot"
)

// Update is one newly confirmed endpoint, pushed by Publish to every
// websocket subscriber of its symbol.
type Update struct {
	Symbol string    `json:"symbol"`
	Kind   string    `json:"kind"` // "fractal", "stroke", "segment", "pivot"
	DT     time.Time `json:"dt"`
	Price  float64   `json:"price"`
}

// Server serves GET /snapshot/{symbol}, GET /metrics, and the websocket
// stream at /stream/{symbol}.
type Server struct {
	store    snapshot.Store
	router   *mux.Router
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[string][]chan Update
}

// NewServer builds a Server reading cached snapshots from store.
func NewServer(store snapshot.Store) *Server {
	s := &Server{
		store:    store,
		router:   mux.NewRouter(),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		subs:     make(map[string][]chan Update),
	}
	s.router.HandleFunc("/snapshot/{symbol}", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/stream/{symbol}", s.handleStream).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	snap, ok := s.store.Get(symbol)
	if !ok {
		http.Error(w, "snapshot not available for "+symbol, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := make(chan Update, 16)
	s.subscribe(symbol, ch)
	defer s.unsubscribe(symbol, ch)

	for update := range ch {
		if err := conn.WriteJSON(update); err != nil {
			return
		}
	}
}

// Publish pushes update to every subscriber of update.Symbol. Non-blocking:
// a slow subscriber drops the update rather than stalling the publisher.
// Nothing in this module calls Publish outside its tests.
func (s *Server) Publish(update Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[update.Symbol] {
		select {
		case ch <- update:
		default:
		}
	}
}

func (s *Server) subscribe(symbol string, ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[symbol] = append(s.subs[symbol], ch)
}

func (s *Server) unsubscribe(symbol string, ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[symbol]
	for i, c := range subs {
		if c == ch {
			s.subs[symbol] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
}
