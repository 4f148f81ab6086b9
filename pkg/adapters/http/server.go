// Package http exposes the bot webhook, the read API and metrics over chi,
// and delivers replies to the transport gateway.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/internal/validator"
	"github.com/aretw0/coperacha/pkg/bot"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/finance"
	"github.com/aretw0/coperacha/pkg/ports"
	"github.com/aretw0/coperacha/pkg/wallet"
	"github.com/go-chi/chi/v5"
)

// TokenHeader carries the shared secret the gateway presents on the webhook.
const TokenHeader = "X-Gateway-Token"

// maxBody bounds inbound request bodies.
const maxBody = 64 << 10

// Bot processes inbound messages.
type Bot interface {
	Handle(ctx context.Context, msg domain.Message) error
}

// Queue accepts inbound messages for asynchronous processing.
type Queue interface {
	Submit(ctx context.Context, msg domain.Message) error
}

// Finance answers the read API.
type Finance interface {
	BalanceByAddress(ctx context.Context, address string) (domain.BalanceView, error)
	Dashboard(ctx context.Context, wallet string) finance.Dashboard
	Contributions(ctx context.Context, wallet string) finance.Result[[]domain.Contribution]
	ProposalHistory(ctx context.Context, wallet string) (finance.History, error)
	Members(ctx context.Context, wallet string) ([]domain.Member, error)
	AccountTransactions(ctx context.Context, address string, limit int) finance.Result[[]domain.TxView]
}

// Governance creates and confirms proposals and lists the factory's wallets.
type Governance interface {
	Propose(ctx context.Context, d wallet.ProposalDraft) (string, error)
	Confirm(ctx context.Context, wallet string, id int, member string) (string, error)
	Wallets(ctx context.Context) ([]string, error)
}

// Rates reads and updates the exchange rate.
type Rates interface {
	Current(ctx context.Context) float64
	Set(ctx context.Context, rate float64) error
}

// Server holds the collaborators behind the routes. Nil collaborators
// disable their routes.
type Server struct {
	Bot Bot
	// Queue, when set, takes webhook messages instead of Bot.
	Queue      Queue
	Finance    Finance
	Governance Governance
	Records    ports.RecordStore
	Rates      Rates
	Metrics    http.Handler

	// Token, when set, must match TokenHeader on the webhook.
	Token   string
	Version string
	Logger  *slog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(s *Server) http.Handler {
	if s.Logger == nil {
		s.Logger = logging.NewNop()
	}
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	if s.Bot != nil || s.Queue != nil {
		r.Post("/webhook", s.Webhook)
	}
	if s.Finance != nil {
		r.Get("/saldos", s.GetBalances)
	}
	if s.Governance != nil {
		r.Post("/proponerGasto", s.ProposeExpense)
		r.Post("/proponerMiembro", s.ProposeMember)
	}
	if s.Finance != nil || s.Governance != nil {
		r.Route("/wallets", func(r chi.Router) {
			if s.Governance != nil {
				r.Get("/", s.GetWallets)
			}
			if s.Finance != nil {
				r.Get("/personal/{addr}/txs", s.GetAccountTransactions)
			}
			r.Route("/{addr}", func(r chi.Router) {
				if s.Finance != nil {
					r.Get("/dashboard", s.GetDashboard)
					r.Get("/aportes", s.GetContributions)
					r.Get("/propuestas-historial", s.GetProposalHistory)
					r.Get("/users", s.GetMembers)
				}
				if s.Governance != nil {
					r.Post("/votar", s.Vote)
				}
			})
		})
	}
	if s.Records != nil {
		r.Get("/wallet-registrada", s.GetWalletRegistered)
	}
	if s.Rates != nil {
		r.Get("/config/exchange-rate", s.GetExchangeRate)
		r.Post("/config/exchange-rate", s.SetExchangeRate)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TokenHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Message: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	s.writeJSON(w, status, resp)
}

// walletParam reads and validates the {addr} path parameter.
func (s *Server) walletParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr := validator.NormalizeAddress(chi.URLParam(r, "addr"))
	if !validator.IsValidAddress(addr) {
		s.fail(w, http.StatusBadRequest, "dirección de wallet inválida", nil)
		return "", false
	}
	return addr, true
}

// queryWallet reads and validates the ?wallet= query parameter.
func (s *Server) queryWallet(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr := validator.NormalizeAddress(r.URL.Query().Get("wallet"))
	if addr == "" {
		s.fail(w, http.StatusBadRequest, "se requiere 'wallet' en query params", nil)
		return "", false
	}
	if !validator.IsValidAddress(addr) {
		s.fail(w, http.StatusBadRequest, "dirección de wallet inválida", nil)
		return "", false
	}
	return addr, true
}

// Webhook handles POST /webhook: one inbound message from the gateway.
// Replies are delivered asynchronously through the Sender. With a Queue the
// message is accepted at once; otherwise the turn runs before the response,
// detached from the request so a gateway timeout cannot cut it short.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	if s.Token != "" && r.Header.Get(TokenHeader) != s.Token {
		s.fail(w, http.StatusUnauthorized, "token inválido", nil)
		return
	}
	var msg domain.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&msg); err != nil {
		s.Logger.Warn("Webhook: invalid request body", "err", err)
		s.fail(w, http.StatusBadRequest, "cuerpo inválido", err)
		return
	}
	msg.From = strings.TrimSpace(msg.From)
	if msg.From == "" {
		s.fail(w, http.StatusBadRequest, "se requiere 'from'", nil)
		return
	}

	if s.Queue != nil {
		s.enqueue(w, r, msg)
		return
	}

	err := s.Bot.Handle(context.WithoutCancel(r.Context()), msg)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "handled"})
	case errors.Is(err, bot.ErrThrottled):
		s.fail(w, http.StatusTooManyRequests, "demasiados mensajes", nil)
	case errors.Is(err, bot.ErrUnavailable):
		s.Logger.Error("Webhook: turn failed", "from", msg.From, "err", err)
		s.fail(w, http.StatusServiceUnavailable, "servicio no disponible", err)
	default:
		// The turn ran and its state was kept; a retry would replay it.
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "degraded"})
	}
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, msg domain.Message) {
	err := s.Queue.Submit(r.Context(), msg)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	case errors.Is(err, bot.ErrQueueFull):
		s.Logger.Warn("Webhook: queue full", "from", msg.From)
		w.Header().Set("Retry-After", "1")
		s.fail(w, http.StatusServiceUnavailable, "cola llena", nil)
	default:
		s.Logger.Warn("Webhook: message not queued", "from", msg.From, "err", err)
		s.fail(w, http.StatusServiceUnavailable, "servicio no disponible", err)
	}
}

type balancesResponse struct {
	domain.BalanceView
	Rate float64 `json:"rate"`
}

// GetBalances handles GET /saldos?wallet=.
func (s *Server) GetBalances(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.queryWallet(w, r)
	if !ok {
		return
	}
	view, err := s.Finance.BalanceByAddress(r.Context(), addr)
	if err != nil {
		s.Logger.Error("GetBalances failed", "wallet", addr, "err", err)
		s.fail(w, http.StatusBadGateway, "error consultando saldos", err)
		return
	}
	resp := balancesResponse{BalanceView: view}
	if s.Rates != nil {
		resp.Rate = s.Rates.Current(r.Context())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetDashboard handles GET /wallets/{addr}/dashboard. Sections that failed
// carry their own status; the response itself is always 200.
func (s *Server) GetDashboard(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.Finance.Dashboard(r.Context(), addr))
}

type contributionsResponse struct {
	Wallet        string                `json:"wallet"`
	Count         int                   `json:"count"`
	Contributions []domain.Contribution `json:"contributions"`
}

// GetContributions handles GET /wallets/{addr}/aportes.
func (s *Server) GetContributions(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	res := s.Finance.Contributions(r.Context(), addr)
	switch res.Status {
	case finance.StatusUnsupported:
		s.fail(w, http.StatusNotImplemented, "el nodo actual no soporta el índice de transferencias", res.Err)
	case finance.StatusFailed:
		s.fail(w, http.StatusBadGateway, "error obteniendo aportes", res.Err)
	default:
		s.writeJSON(w, http.StatusOK, contributionsResponse{
			Wallet:        addr,
			Count:         len(res.Value),
			Contributions: res.Value,
		})
	}
}

// GetProposalHistory handles GET /wallets/{addr}/propuestas-historial.
func (s *Server) GetProposalHistory(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	h, err := s.Finance.ProposalHistory(r.Context(), addr)
	if err != nil {
		s.Logger.Error("GetProposalHistory failed", "wallet", addr, "err", err)
		s.fail(w, http.StatusBadGateway, "error obteniendo historial", err)
		return
	}
	s.writeJSON(w, http.StatusOK, h)
}

// GetMembers handles GET /wallets/{addr}/users.
func (s *Server) GetMembers(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	members, err := s.Finance.Members(r.Context(), addr)
	if err != nil {
		s.Logger.Error("GetMembers failed", "wallet", addr, "err", err)
		s.fail(w, http.StatusInternalServerError, "error obteniendo miembros", err)
		return
	}
	if members == nil {
		members = []domain.Member{}
	}
	s.writeJSON(w, http.StatusOK, members)
}

type accountTxsResponse struct {
	Address string          `json:"address"`
	Count   int             `json:"count"`
	Txs     []domain.TxView `json:"txs"`
}

// GetAccountTransactions handles GET /wallets/personal/{addr}/txs?limit=.
func (s *Server) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	limit := finance.DefaultAccountTransactions
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(w, http.StatusBadRequest, "limit debe ser un entero", err)
			return
		}
		limit = max(n, 1)
	}
	res := s.Finance.AccountTransactions(r.Context(), addr, limit)
	switch res.Status {
	case finance.StatusUnsupported:
		s.fail(w, http.StatusNotImplemented, "el nodo actual no soporta el índice de transacciones", res.Err)
	case finance.StatusFailed:
		s.fail(w, http.StatusBadGateway, "error obteniendo transacciones", res.Err)
	default:
		s.writeJSON(w, http.StatusOK, accountTxsResponse{Address: addr, Count: len(res.Value), Txs: res.Value})
	}
}

// GetWallets handles GET /wallets.
func (s *Server) GetWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.Governance.Wallets(r.Context())
	if err != nil {
		s.Logger.Error("GetWallets failed", "err", err)
		s.fail(w, http.StatusBadGateway, "error al obtener wallets", err)
		return
	}
	if wallets == nil {
		wallets = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"wallets": wallets})
}

type expenseBody struct {
	Wallet      string      `json:"walletAddress"`
	Recipient   string      `json:"destinatario"`
	Description string      `json:"descripcion"`
	Member      string      `json:"miembro"`
	Amount      json.Number `json:"monto"`
	Unit        string      `json:"unidad"`
}

type memberBody struct {
	Wallet      string `json:"walletAddress"`
	Candidate   string `json:"nuevoMiembro"`
	Description string `json:"descripcion"`
	Member      string `json:"miembro"`
}

type voteBody struct {
	ID     *int   `json:"idPropuesta"`
	Member string `json:"miembro"`
}

type txResponse struct {
	Message string `json:"message"`
	TxHash  string `json:"txHash"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.fail(w, http.StatusBadRequest, "cuerpo inválido", err)
		return false
	}
	return true
}

// toWei converts amount in unit (wei, eth or hnl; eth by default) to wei.
func (s *Server) toWei(ctx context.Context, amount json.Number, unit string) (*big.Int, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "eth":
		return finance.NativeToWei(amount.String())
	case "wei":
		n, ok := new(big.Int).SetString(amount.String(), 10)
		if !ok {
			return nil, errors.New("monto en wei debe ser entero")
		}
		return n, nil
	case "hnl":
		local, err := amount.Float64()
		if err != nil {
			return nil, err
		}
		rate := float64(finance.DefaultRate)
		if s.Rates != nil {
			rate = s.Rates.Current(ctx)
		}
		return finance.LocalToWei(local, rate)
	default:
		return nil, errors.New("unidad debe ser wei, eth o hnl")
	}
}

// failWrite maps governance errors: rejected input and expired proposals
// are the caller's fault, anything else is a ledger failure.
func (s *Server) failWrite(w http.ResponseWriter, op string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		s.fail(w, http.StatusBadRequest, "datos inválidos", err)
	case errors.Is(err, domain.ErrProposalExpired):
		s.fail(w, http.StatusBadRequest, "La propuesta ha expirado.", nil)
	default:
		s.Logger.Error(op+" failed", "err", err)
		s.fail(w, http.StatusBadGateway, "error en el ledger", err)
	}
}

// ProposeExpense handles POST /proponerGasto.
func (s *Server) ProposeExpense(w http.ResponseWriter, r *http.Request) {
	var body expenseBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.Wallet == "" || body.Recipient == "" || body.Description == "" || body.Member == "" || body.Amount == "" {
		s.fail(w, http.StatusBadRequest, "Faltan campos requeridos: walletAddress, destinatario, descripcion, miembro, monto", nil)
		return
	}
	amount, err := s.toWei(r.Context(), body.Amount, body.Unit)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "monto inválido", err)
		return
	}
	tx, err := s.Governance.Propose(r.Context(), wallet.ProposalDraft{
		Wallet:      body.Wallet,
		Proposer:    body.Member,
		Target:      body.Recipient,
		Amount:      amount,
		Description: body.Description,
		Type:        domain.ProposalExpense,
	})
	if err != nil {
		s.failWrite(w, "ProposeExpense", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, txResponse{Message: "Propuesta de gasto creada", TxHash: tx})
}

// ProposeMember handles POST /proponerMiembro.
func (s *Server) ProposeMember(w http.ResponseWriter, r *http.Request) {
	var body memberBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.Wallet == "" || body.Candidate == "" || body.Description == "" || body.Member == "" {
		s.fail(w, http.StatusBadRequest, "walletAddress, nuevoMiembro, descripcion y miembro son requeridos", nil)
		return
	}
	tx, err := s.Governance.Propose(r.Context(), wallet.ProposalDraft{
		Wallet:      body.Wallet,
		Proposer:    body.Member,
		Target:      body.Candidate,
		Description: body.Description,
		Type:        domain.ProposalMembershipChange,
	})
	if err != nil {
		s.failWrite(w, "ProposeMember", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, txResponse{Message: "Propuesta para nuevo miembro creada exitosamente", TxHash: tx})
}

// Vote handles POST /wallets/{addr}/votar.
func (s *Server) Vote(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	var body voteBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.ID == nil || body.Member == "" {
		s.fail(w, http.StatusBadRequest, "Se requiere idPropuesta y miembro", nil)
		return
	}
	tx, err := s.Governance.Confirm(r.Context(), addr, *body.ID, body.Member)
	if err != nil {
		s.failWrite(w, "Vote", err)
		return
	}
	s.writeJSON(w, http.StatusOK, txResponse{Message: "Propuesta confirmada exitosamente", TxHash: tx})
}

// GetWalletRegistered handles GET /wallet-registrada?wallet=.
func (s *Server) GetWalletRegistered(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.queryWallet(w, r)
	if !ok {
		return
	}
	_, err := s.Records.FindByAddress(r.Context(), addr)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]bool{"registrada": true})
	case errors.Is(err, domain.ErrRecordNotFound):
		s.writeJSON(w, http.StatusOK, map[string]bool{"registrada": false})
	default:
		s.Logger.Error("GetWalletRegistered failed", "wallet", addr, "err", err)
		s.fail(w, http.StatusInternalServerError, "error en el servidor", err)
	}
}

type rateBody struct {
	Rate json.Number `json:"ethToHnl"`
}

// GetExchangeRate handles GET /config/exchange-rate.
func (s *Server) GetExchangeRate(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]float64{"ethToHnl": s.Rates.Current(r.Context())})
}

// SetExchangeRate handles POST /config/exchange-rate.
func (s *Server) SetExchangeRate(w http.ResponseWriter, r *http.Request) {
	var body rateBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "cuerpo inválido", err)
		return
	}
	rate, err := strconv.ParseFloat(body.Rate.String(), 64)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "ethToHnl debe ser numérico", err)
		return
	}
	if err := s.Rates.Set(r.Context(), rate); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			s.fail(w, http.StatusBadRequest, "ethToHnl debe ser mayor que 0", err)
			return
		}
		s.Logger.Error("SetExchangeRate failed", "rate", rate, "err", err)
		s.fail(w, http.StatusInternalServerError, "error guardando la tasa", err)
		return
	}
	s.Logger.Info("exchange rate updated", "rate", rate)
	s.writeJSON(w, http.StatusOK, map[string]float64{"ethToHnl": rate})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "coperacha",
		"version": strings.TrimSpace(s.Version),
	})
}
