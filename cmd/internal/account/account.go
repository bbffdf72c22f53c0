package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"warden/cmd/identity"
	"warden/cmd/internal/notify"
	"warden/cmd/security/token"
)

// Hasher validates, hashes and verifies secrets. password.Config implements it.
type Hasher interface {
	Validate(secret string) error
	Hash(secret string) (string, error)
	Verify(digest, secret string) (bool, error)
	IsLegacy(digest string) bool
}

// Tokens issues and verifies purpose-bound tokens. *token.Service implements it.
type Tokens interface {
	Issue(c token.Claims, ttl time.Duration) (string, time.Time, error)
	Verify(raw string, want token.Purpose) (token.Claims, error)
}

// Metrics observes finished operations. outcome is "ok" or an error Kind.
type Metrics interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

// TTLs are the lifetimes of issued tokens.
type TTLs struct {
	Verify time.Duration
	Login  time.Duration
	Reset  time.Duration
}

// DefaultTTLs returns one hour for verification and login tokens
// and fifteen minutes for reset tokens.
func DefaultTTLs() TTLs {
	return TTLs{Verify: time.Hour, Login: time.Hour, Reset: 15 * time.Minute}
}

// Service runs account operations. It is safe for concurrent use.
type Service struct {
	store   identity.Store
	hasher  Hasher
	tokens  Tokens
	gateway notify.Gateway

	log     *slog.Logger
	metrics Metrics
	now     func() time.Time
	ttl     TTLs
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTTLs overrides token lifetimes. Zero fields keep their default.
func WithTTLs(t TTLs) Option {
	return func(s *Service) {
		if t.Verify > 0 {
			s.ttl.Verify = t.Verify
		}
		if t.Login > 0 {
			s.ttl.Login = t.Login
		}
		if t.Reset > 0 {
			s.ttl.Reset = t.Reset
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration) {}

// New wires a Service.
func New(store identity.Store, hasher Hasher, tokens Tokens, gateway notify.Gateway, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("account: nil store")
	case hasher == nil:
		return nil, errors.New("account: nil hasher")
	case tokens == nil:
		return nil, errors.New("account: nil tokens")
	case gateway == nil:
		return nil, errors.New("account: nil gateway")
	}

	s := &Service{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		gateway: gateway,
		log:     slog.Default(),
		metrics: nopMetrics{},
		now:     time.Now,
		ttl:     DefaultTTLs(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Register creates an unverified user and sends a verification message.
func (s *Service) Register(ctx context.Context, in RegisterInput) (res Result, err error) {
	const op = "account.Register"
	defer s.finish("register", time.Now(), &err)

	in = in.normalize()
	if err := in.validate(); err != nil {
		return Result{}, failValidation(op, err.Error(), err)
	}
	if err := s.hasher.Validate(in.Password); err != nil {
		return Result{}, failValidation(op, err.Error(), err)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return Result{}, failInternal(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Username first, then email: every writer takes the locks in this order.
	_, err = tx.FindByUsername(ctx, in.Username, true)
	if err = absent(op, "username", err); err != nil {
		return Result{}, s.lookupFailure(op, err)
	}
	_, err = tx.FindByEmail(ctx, in.Email, true)
	if err = absent(op, "email", err); err != nil {
		return Result{}, s.lookupFailure(op, err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Result{}, failInternal(op, err)
	}

	u, err := tx.Create(ctx, identity.CreateUserInput{
		Username:       in.Username,
		Email:          in.Email,
		PasswordDigest: digest,
		Now:            s.now().UTC(),
	})
	if err != nil {
		if identity.IsConflict(err) {
			return Result{}, failConflict(op, err)
		}
		return Result{}, failInternal(op, err)
	}

	raw, exp, err := s.tokens.Issue(token.Claims{Email: u.Email, Purpose: token.PurposeVerifyEmail}, s.ttl.Verify)
	if err != nil {
		return Result{}, failInternal(op, err)
	}
	if err := s.gateway.Send(ctx, notify.Message{
		Kind:      notify.KindVerification,
		Address:   u.Email,
		Token:     raw,
		ExpiresAt: exp,
	}); err != nil {
		return Result{}, failInternal(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		if identity.IsConflict(err) {
			return Result{}, failConflict(op, err)
		}
		return Result{}, failInternal(op, err)
	}

	s.log.Info("account.register.ok", "user_id", u.ID)
	return Result{
		Status:  StatusCreated,
		Message: "user registered; check your email to confirm your account",
	}, nil
}

// Login checks a username and password and issues a login token.
// Unverified users may log in.
func (s *Service) Login(ctx context.Context, in LoginInput) (res Result, err error) {
	const op = "account.Login"
	defer s.finish("login", time.Now(), &err)

	in.Username = strings.TrimSpace(in.Username)
	if err := in.validate(); err != nil {
		return Result{}, failValidation(op, err.Error(), err)
	}

	u, err := s.store.FindByUsername(ctx, in.Username)
	if err != nil {
		return Result{}, s.lookupFailure(op, err)
	}

	ok, err := s.hasher.Verify(u.PasswordDigest, in.Password)
	if err != nil {
		return Result{}, failInternal(op, err)
	}
	if !ok {
		return Result{}, failUnauthorized(op)
	}
	if s.hasher.IsLegacy(u.PasswordDigest) {
		s.log.Info("account.login.legacy_digest", "user_id", u.ID)
	}

	raw, exp, err := s.tokens.Issue(token.Claims{
		UserID:   u.ID,
		Username: u.Username,
		Purpose:  token.PurposeLogin,
	}, s.ttl.Login)
	if err != nil {
		return Result{}, failInternal(op, err)
	}

	return Result{
		Status:    StatusAuthenticated,
		Message:   "login successful",
		Token:     raw,
		ExpiresAt: exp,
	}, nil
}

// VerifyEmail marks the user named by a verification token as verified.
// Verifying an already verified user succeeds and rewrites the flag.
func (s *Service) VerifyEmail(ctx context.Context, raw string) (res Result, err error) {
	const op = "account.VerifyEmail"
	defer s.finish("verify_email", time.Now(), &err)

	claims, err := s.tokens.Verify(raw, token.PurposeVerifyEmail)
	if err != nil {
		return Result{}, failInvalidToken(op, err)
	}
	if claims.Email == "" {
		return Result{}, failInvalidToken(op, errors.New("token carries no email"))
	}

	err = identity.WithTx(ctx, s.store, func(ctx context.Context, tx identity.Tx) error {
		u, err := tx.FindByEmail(ctx, claims.Email, true)
		if err != nil {
			return err
		}
		_, err = tx.Update(ctx, u, identity.UpdateUserInput{MarkVerified: true, Now: s.now().UTC()})
		return err
	})
	if err != nil {
		return Result{}, s.lookupFailure(op, err)
	}

	return Result{Status: StatusVerified, Message: "account verified"}, nil
}

// RequestPasswordReset sends a reset token to a registered email address.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (res Result, err error) {
	const op = "account.RequestPasswordReset"
	defer s.finish("request_password_reset", time.Now(), &err)

	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return Result{}, failValidation(op, err.Error(), err)
	}

	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Result{}, s.lookupFailure(op, err)
	}

	raw, exp, err := s.tokens.Issue(token.Claims{Email: u.Email, Purpose: token.PurposePasswordReset}, s.ttl.Reset)
	if err != nil {
		return Result{}, failInternal(op, err)
	}
	if err := s.gateway.Send(ctx, notify.Message{
		Kind:      notify.KindPasswordReset,
		Address:   u.Email,
		Token:     raw,
		ExpiresAt: exp,
	}); err != nil {
		return Result{}, failInternal(op, err)
	}

	return Result{Status: StatusSent, Message: "password reset email sent"}, nil
}

// CompletePasswordReset replaces the password of the user named by a reset token.
// A reset token stays usable until it expires.
func (s *Service) CompletePasswordReset(ctx context.Context, raw, newPassword string) (res Result, err error) {
	const op = "account.CompletePasswordReset"
	defer s.finish("complete_password_reset", time.Now(), &err)

	if err := validateNewPassword(newPassword); err != nil {
		return Result{}, failValidation(op, err.Error(), err)
	}
	if err := s.hasher.Validate(newPassword); err != nil {
		return Result{}, failValidation(op, err.Error(), err)
	}

	claims, err := s.tokens.Verify(raw, token.PurposePasswordReset)
	if err != nil {
		return Result{}, failInvalidToken(op, err)
	}
	if claims.Email == "" {
		return Result{}, failInvalidToken(op, errors.New("token carries no email"))
	}

	err = identity.WithTx(ctx, s.store, func(ctx context.Context, tx identity.Tx) error {
		u, err := tx.FindByEmail(ctx, claims.Email, true)
		if err != nil {
			return err
		}
		digest, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		_, err = tx.Update(ctx, u, identity.UpdateUserInput{PasswordDigest: &digest, Now: s.now().UTC()})
		return err
	})
	if err != nil {
		return Result{}, s.lookupFailure(op, err)
	}

	return Result{Status: StatusUpdated, Message: "password updated"}, nil
}

// absent maps the error of a locked lookup: no row is nil, a row is a conflict on field.
func absent(op, field string, err error) error {
	switch {
	case err == nil:
		return identity.ConflictError{Op: op, Field: field}
	case identity.IsNotFound(err):
		return nil
	default:
		return err
	}
}

func (s *Service) lookupFailure(op string, err error) error {
	switch {
	case identity.IsConflict(err):
		return failConflict(op, err)
	case identity.IsNotFound(err):
		return failNotFound(op, err)
	case identity.IsInvalidInput(err):
		return failValidation(op, "invalid input", err)
	default:
		return failInternal(op, err)
	}
}

func (s *Service) finish(name string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	err := *errp
	if err == nil {
		s.metrics.ObserveOperation(name, "ok", elapsed)
		return
	}

	kind := KindOf(err)
	s.metrics.ObserveOperation(name, string(kind), elapsed)
	if kind == KindInternal {
		s.log.Error("account."+name+".fail", "err", err)
		return
	}
	s.log.Debug("account."+name+".rejected", "kind", string(kind))
}
