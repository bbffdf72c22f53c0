package accountapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"warden/cmd/internal/account"
)

// Accounts is the account state machine as seen by the transport.
// *account.Service implements it.
type Accounts interface {
	Register(ctx context.Context, in account.RegisterInput) (account.Result, error)
	Login(ctx context.Context, in account.LoginInput) (account.Result, error)
	VerifyEmail(ctx context.Context, token string) (account.Result, error)
	RequestPasswordReset(ctx context.Context, email string) (account.Result, error)
	CompletePasswordReset(ctx context.Context, token, newPassword string) (account.Result, error)
}

// Handler wires HTTP account endpoints to the account service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	accounts Accounts
}

// NewHandler constructs an account Handler.
func NewHandler(log *slog.Logger, accounts Accounts, cfg Config) (*Handler, error) {
	if accounts == nil {
		return nil, errors.New("accountapi: nil account service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{log: log, cfg: cfg, accounts: accounts}, nil
}

// Register wires account routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/verify/{token}", h.handleVerifyPath)
	mux.HandleFunc("POST /auth/verify/{token}", h.handleVerifyPath)
	mux.HandleFunc("POST /auth/verify", h.handleVerifyBody)
	mux.HandleFunc("POST /auth/password/forgot", h.handleForgotPassword)
	mux.HandleFunc("POST /auth/password/reset", h.handleResetPassword)
	mux.HandleFunc("POST /auth/password/reset/{token}", h.handleResetPassword)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.accounts.Register(r.Context(), account.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	h.respond(w, http.StatusCreated, res, err)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.accounts.Login(r.Context(), account.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	h.respond(w, http.StatusOK, res, err)
}

func (h *Handler) handleVerifyPath(w http.ResponseWriter, r *http.Request) {
	res, err := h.accounts.VerifyEmail(r.Context(), r.PathValue("token"))
	h.respond(w, http.StatusOK, res, err)
}

func (h *Handler) handleVerifyBody(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.accounts.VerifyEmail(r.Context(), req.Token)
	h.respond(w, http.StatusOK, res, err)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.accounts.RequestPasswordReset(r.Context(), req.Email)
	h.respond(w, http.StatusOK, res, err)
}

// handleResetPassword serves both reset routes. A token in the body wins
// over one in the path.
func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	tok := strings.TrimSpace(req.Token)
	if tok == "" {
		tok = r.PathValue("token")
	}

	res, err := h.accounts.CompletePasswordReset(r.Context(), tok, req.NewPassword)
	h.respond(w, http.StatusOK, res, err)
}

// ---- helpers ----

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, dst); err != nil {
		h.log.Debug("account.api.decode.fail", "route", r.Pattern, "err", err)
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, okStatus int, res account.Result, err error) {
	if err != nil {
		kind := account.KindOf(err)
		writeError(w, statusForKind(kind), string(kind), account.PublicMessage(err))
		return
	}
	writeJSON(w, okStatus, toResultResponse(res))
}

func statusForKind(k account.Kind) int {
	switch k {
	case account.KindValidation, account.KindInvalidToken:
		return http.StatusBadRequest
	case account.KindUnauthorized:
		return http.StatusUnauthorized
	case account.KindNotFound:
		return http.StatusNotFound
	case account.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
