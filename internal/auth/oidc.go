package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	GoogleIssuerURL = "https://accounts.google.com"

	defaultChallengeTimeout = 5 * time.Minute
	defaultSessionTTL       = 30 * 24 * time.Hour
)

var (
	errUnknownChallenge  = errors.New("unknown or expired sign-in challenge")
	errChallengeAnswered = errors.New("sign-in challenge already answered")
)

// OIDCConfig configures the Google (or any OIDC) sign-in.
type OIDCConfig struct {
	IssuerURL        string
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	Scopes           []string
	SelectAccount    bool
	SessionCachePath string
	SessionTTL       time.Duration
	StateKey         []byte
	ChallengeTimeout time.Duration
}

// codeExchanger turns an authorization code into a verified profile.
type codeExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code, verifier string) (*ProviderUser, error)
}

type oidcExchanger struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func (e *oidcExchanger) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return e.oauth.AuthCodeURL(state, opts...)
}

func (e *oidcExchanger) Exchange(ctx context.Context, code, verifier string) (*ProviderUser, error) {
	token, err := e.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response has no id_token")
	}

	idToken, err := e.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("id token verification failed: %w", err)
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("claim parse failed: %w", err)
	}

	return &ProviderUser{
		Subject: claims.Sub,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

type challenge struct {
	verifier string
	result   chan challengeResult
	closed   chan struct{}
}

type challengeResult struct {
	user *ProviderUser
	err  error
	done chan struct{}
}

// OIDCProvider implements Provider with the authorization code flow.
// The interactive challenge is answered by CompleteChallenge, which the
// HTTP callback handler calls.
type OIDCProvider struct {
	exchanger     codeExchanger
	states        *stateSigner
	cache         sessionCache
	logger        *slog.Logger
	timeout       time.Duration
	ttl           time.Duration
	selectAccount bool
	now           func() time.Time

	notifyMu  sync.Mutex
	mu        sync.Mutex
	session   *Session
	expiry    *time.Timer
	observers []*sessionObserver
	pending   map[string]*challenge
}

type sessionObserver struct {
	fn func(*Session)
}

// NewOIDCProvider discovers the issuer and restores any cached session.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig, logger *slog.Logger) (*OIDCProvider, error) {
	issuer := cfg.IssuerURL
	if issuer == "" {
		issuer = GoogleIssuerURL
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC issuer %s: %w", issuer, err)
	}

	exchanger := &oidcExchanger{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       append([]string{oidc.ScopeOpenID, "email", "profile"}, cfg.Scopes...),
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}
	return newOIDCProvider(exchanger, cfg, logger)
}

func newOIDCProvider(exchanger codeExchanger, cfg OIDCConfig, logger *slog.Logger) (*OIDCProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	states, err := newStateSigner(cfg.StateKey)
	if err != nil {
		return nil, err
	}

	p := &OIDCProvider{
		exchanger:     exchanger,
		states:        states,
		cache:         sessionCache{path: cfg.SessionCachePath},
		logger:        logger.With("component", "oidc"),
		timeout:       cfg.ChallengeTimeout,
		ttl:           cfg.SessionTTL,
		selectAccount: cfg.SelectAccount,
		now:           time.Now,
		pending:       make(map[string]*challenge),
	}
	if p.timeout <= 0 {
		p.timeout = defaultChallengeTimeout
	}
	if p.ttl <= 0 {
		p.ttl = defaultSessionTTL
	}

	restored, err := p.cache.Load()
	if err != nil {
		p.logger.Warn("ignoring unreadable session cache", "error", err)
	}
	if restored != nil && restored.Expired(p.now()) {
		p.logger.Info("cached session expired", "uid", restored.User.Subject)
		_ = p.cache.Clear()
		restored = nil
	}
	if restored != nil {
		p.logger.Info("restored cached session", "uid", restored.User.Subject)
	}
	p.mu.Lock()
	p.setSession(restored)
	p.mu.Unlock()
	return p, nil
}

// Subscribe delivers the current session immediately and then every change.
// fn must not call back into the provider.
func (p *OIDCProvider) Subscribe(fn func(*Session)) (unsubscribe func()) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	o := &sessionObserver{fn: fn}
	p.mu.Lock()
	p.observers = append(p.observers, o)
	current := copySession(p.session)
	p.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, cur := range p.observers {
				if cur == o {
					p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// SignInInteractive opens the provider's consent page through open and
// waits for CompleteChallenge or for ctx to end.
func (p *OIDCProvider) SignInInteractive(ctx context.Context, open func(authURL string) error) (*ProviderUser, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	state, err := p.states.Sign(id, p.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to sign state: %w", err)
	}

	ch := &challenge{
		verifier: oauth2.GenerateVerifier(),
		result:   make(chan challengeResult, 1),
		closed:   make(chan struct{}),
	}
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		close(ch.closed)
	}()

	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(ch.verifier)}
	if p.selectAccount {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "select_account"))
	}
	if err := open(p.exchanger.AuthCodeURL(state, opts...)); err != nil {
		return nil, fmt.Errorf("failed to open sign-in page: %w", err)
	}

	select {
	case res := <-ch.result:
		defer close(res.done)
		if res.err != nil {
			return nil, res.err
		}
		sess := &Session{User: *res.user, Expiry: p.now().Add(p.ttl)}
		p.notifyMu.Lock()
		if err := p.cache.Save(sess); err != nil {
			p.logger.Warn("failed to persist session", "error", err)
		}
		p.publish(sess)
		p.notifyMu.Unlock()
		return res.user, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrSignInDismissed, ctx.Err())
	}
}

// CompleteChallenge answers a pending challenge with the callback's query
// parameters. It returns once the sign-in has been applied.
func (p *OIDCProvider) CompleteChallenge(ctx context.Context, state, code, providerErr string) error {
	id, err := p.states.Verify(state)
	if err != nil {
		return err
	}

	p.mu.Lock()
	ch, ok := p.pending[id]
	p.mu.Unlock()
	if !ok {
		return errUnknownChallenge
	}

	res := challengeResult{done: make(chan struct{})}
	switch {
	case providerErr != "":
		res.err = fmt.Errorf("provider returned error %q", providerErr)
	case code == "":
		res.err = errors.New("callback has no authorization code")
	default:
		res.user, res.err = p.exchanger.Exchange(ctx, code, ch.verifier)
	}

	select {
	case ch.result <- res:
	default:
		return errChallengeAnswered
	}

	select {
	case <-res.done:
		return res.err
	case <-ch.closed:
		select {
		case <-res.done:
			return res.err
		default:
			return ErrSignInDismissed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignOut forgets the session and notifies subscribers.
func (p *OIDCProvider) SignOut(ctx context.Context) error {
	err := p.cache.Clear()
	p.notify(nil)
	return err
}

func (p *OIDCProvider) notify(s *Session) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.publish(s)
}

// publish installs s and delivers it. The caller holds notifyMu.
func (p *OIDCProvider) publish(s *Session) {
	p.mu.Lock()
	p.setSession(s)
	observers := make([]*sessionObserver, len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()

	for _, o := range observers {
		o.fn(copySession(s))
	}
}

// setSession replaces the session and arms a timer for its expiry. The
// caller holds mu.
func (p *OIDCProvider) setSession(s *Session) {
	p.session = copySession(s)
	if p.expiry != nil {
		p.expiry.Stop()
		p.expiry = nil
	}
	if s == nil || s.Expiry.IsZero() {
		return
	}
	at := s.Expiry
	p.expiry = time.AfterFunc(at.Sub(p.now()), func() { p.expire(at) })
}

// expire signs the session out if it is still the one expiring at at.
func (p *OIDCProvider) expire(at time.Time) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	current := p.session
	p.mu.Unlock()
	if current == nil || !current.Expiry.Equal(at) {
		return
	}

	p.logger.Info("session expired", "uid", current.User.Subject)
	if err := p.cache.Clear(); err != nil {
		p.logger.Warn("failed to clear expired session", "error", err)
	}
	p.publish(nil)
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
