package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/freshgrlc/freshgrlc-indexer/engine"
	"github.com/freshgrlc/freshgrlc-indexer/events"
)

// SessionFactory opens a fresh read-only session, one per request, mirroring
// the ancestor's `with db.new_session() as session:` per-route idiom.
type SessionFactory func() (*engine.ReadSession, error)

// HandlerError is an error a route handler wants turned into a particular
// HTTP status, adapted from the teacher's apiserver/utils.HandlerError.
type HandlerError struct {
	Code    int
	Message string
}

func (e *HandlerError) Error() string { return e.Message }

// NewHandlerError builds a HandlerError with the given status and message.
func NewHandlerError(code int, message string) *HandlerError {
	return &HandlerError{Code: code, Message: message}
}

func notFound(what string) *HandlerError {
	return NewHandlerError(http.StatusNotFound, fmt.Sprintf("%s not found", what))
}

// Server is the query façade's HTTP surface: route table, CORS, and the
// SSE hub.
type Server struct {
	newSession SessionFactory
	views      *Views
	hub        *events.Hub
	log        *logrus.Entry
	router     *mux.Router
}

// NewServer builds the façade's router. newSession is called once per
// incoming request to obtain an independent read-only session.
func NewServer(newSession SessionFactory, apiEndpoint string, hub *events.Hub, log *logrus.Entry) *Server {
	s := &Server{
		newSession: newSession,
		views:      NewViews(apiEndpoint),
		hub:        hub,
		log:        log,
	}
	s.router = mux.NewRouter()
	s.addRoutes()
	return s
}

// Handler returns the CORS-wrapped http.Handler the listener serves.
func (s *Server) Handler() http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET"}),
	)(s.router)
}

type routeHandler func(r *http.Request, vars map[string]string) (interface{}, *HandlerError)

func (s *Server) handle(path string, h routeHandler) *mux.Route {
	return s.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		resp, hErr := h(r, mux.Vars(r))
		if hErr != nil {
			s.log.WithField("path", path).Warnf("request failed: %s", hErr.Message)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(hErr.Code)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": hErr.Message})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}).Methods("GET")
}

func (s *Server) addRoutes() {
	s.handle("/blocks/", s.handleBlocks)
	s.handle("/blocks/{id}/", s.handleBlock)
	s.handle("/blocks/{id}/miner/", s.handleBlockMiner)
	s.handle("/blocks/{id}/transactions/", s.handleBlockTransactions)

	s.handle("/transactions/", s.handleTransactions)
	s.handle("/transactions/{txid}/", s.handleTransaction)
	s.handle("/transactions/{txid}/inputs/", s.handleTransactionInputs)
	s.handle("/transactions/{txid}/outputs/", s.handleTransactionOutputs)
	s.handle("/transactions/{txid}/mutations/", s.handleTransactionMutations)
	s.handle("/transactions/{txid}/inputs/{index}/", s.handleTransactionInput)
	s.handle("/transactions/{txid}/outputs/{index}/", s.handleTransactionOutput)

	s.handle("/address/{address}/", s.handleAddress)
	s.handle("/address/{address}/balance/", s.handleAddressBalance)
	s.handle("/address/{address}/pending/", s.handleAddressPending)
	s.handle("/address/{address}/mutations/", s.handleAddressMutations)

	s.handle("/networkstats/", s.handleNetworkStats)
	s.handle("/poolstats/", s.handlePoolStats)
	s.handle("/richlist/", s.handleRichList)
	s.handle("/coins/", s.handleCoins)
	s.handle("/search/{id}", s.handleSearch)

	s.router.HandleFunc("/events/subscribe", s.handleSubscribe).Methods("GET")
}
