// Package api serves a transfer action over HTTP. A GET describes the action;
// a POST answers with an unsigned transaction for the requesting account,
// which the caller signs and submits itself.
package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/programs/system"
	"github.com/govm-net/counter/types"
)

// ActionPath is where the action is served
const ActionPath = "/api/action"

// LamportsPerUnit converts the whole-unit amounts in action links to lamports
const LamportsPerUnit = 1_000_000_000

// CORS headers action clients expect on every response
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET,POST,PUT,OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type, Authorization, Content-Encoding, Accept-Encoding",
}

var errInvalidAmount = errors.New("amount must be a positive number")

// Config describes the action and where its transfers go
type Config struct {
	Recipient     core.Address
	Icon          string
	Title         string
	Description   string
	Label         string
	DefaultAmount float64 // In whole units
}

// DefaultConfig returns the action metadata for transfers to recipient
func DefaultConfig(recipient core.Address) Config {
	return Config{
		Recipient:     recipient,
		Icon:          "https://solana.com/src/img/branding/solanaLogoMark.svg",
		Title:         "Support the counter",
		Description:   "Send a tip to the counter maintainers",
		Label:         "Send",
		DefaultAmount: 0.1,
	}
}

// ActionGetResponse is the metadata returned by GET
type ActionGetResponse struct {
	Icon        string       `json:"icon"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Label       string       `json:"label"`
	Links       *ActionLinks `json:"links,omitempty"`
}

type ActionLinks struct {
	Actions []LinkedAction `json:"actions"`
}

type LinkedAction struct {
	Label string `json:"label"`
	Href  string `json:"href"`
	Type  string `json:"type"`
}

// ActionPostRequest carries the account that will sign the transaction
type ActionPostRequest struct {
	Account string `json:"account"`
}

// ActionPostResponse holds the base64 borsh encoding of an unsigned types.Transaction
type ActionPostResponse struct {
	Type        string `json:"type"`
	Transaction string `json:"transaction"`
	Message     string `json:"message,omitempty"`
}

type actionError struct {
	Message string `json:"message"`
}

type server struct {
	cfg Config
	log *zap.Logger
	now func() time.Time
}

// Option configures the server
type Option func(*server)

// WithClock sets the clock that picks transaction nonces
func WithClock(now func() time.Time) Option {
	return func(s *server) {
		s.now = now
	}
}

// NewServer returns the action router.
func NewServer(cfg Config, log *zap.Logger, opts ...Option) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &server{cfg: cfg, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get(ActionPath, s.getAction)
	r.Post(ActionPath, s.postAction)
	r.Options(ActionPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func (s *server) getAction(w http.ResponseWriter, r *http.Request) {
	amount := formatAmount(s.cfg.DefaultAmount)
	writeJSON(w, http.StatusOK, ActionGetResponse{
		Icon:        s.cfg.Icon,
		Title:       s.cfg.Title,
		Description: s.cfg.Description,
		Label:       s.cfg.Label,
		Links: &ActionLinks{Actions: []LinkedAction{{
			Label: fmt.Sprintf("%s %s", s.cfg.Label, amount),
			Href:  ActionPath + "?amount=" + amount,
			Type:  "transaction",
		}}},
	})
}

// lamports parses the amount query parameter; an absent or zero amount
// falls back to the default.
func (s *server) lamports(r *http.Request) (uint64, error) {
	amount := s.cfg.DefaultAmount
	if raw := r.URL.Query().Get("amount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, errors.Wrap(errInvalidAmount, err.Error())
		}
		if v != 0 {
			amount = v
		}
	}
	lamports := math.Round(amount * LamportsPerUnit)
	if math.IsNaN(lamports) || lamports < 1 || lamports >= math.MaxUint64 {
		return 0, errors.Wrapf(errInvalidAmount, "%v", amount)
	}
	return uint64(lamports), nil
}

func (s *server) postAction(w http.ResponseWriter, r *http.Request) {
	var req ActionPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, actionError{Message: "Invalid request body"})
		return
	}
	sender, err := core.AddressFromString(req.Account)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, actionError{Message: "Invalid account"})
		return
	}
	lamports, err := s.lamports(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, actionError{Message: err.Error()})
		return
	}

	tx := types.NewTransaction(sender, uint64(s.now().UnixNano()),
		system.NewTransferInstruction(sender, s.cfg.Recipient, lamports))
	data, err := tx.Encode()
	if err != nil {
		s.log.Error("failed to encode action transaction", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, actionError{Message: "Internal Server Error"})
		return
	}

	s.log.Info("action transaction built",
		zap.Stringer("sender", sender),
		zap.Uint64("lamports", lamports))
	writeJSON(w, http.StatusOK, ActionPostResponse{
		Type:        "transaction",
		Transaction: base64.StdEncoding.EncodeToString(data),
		Message:     fmt.Sprintf("Send %d lamports to %s", lamports, s.cfg.Recipient),
	})
}
