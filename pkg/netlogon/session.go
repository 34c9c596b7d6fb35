package netlogon

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ineffectivecoder/NLGooser/pkg/auth"
	"github.com/ineffectivecoder/NLGooser/pkg/debug"
	"github.com/ineffectivecoder/NLGooser/pkg/metrics"
	"github.com/ineffectivecoder/NLGooser/pkg/ndr"
)

// State is the lifecycle position of a Session
type State int

const (
	StateUnbound State = iota
	StateConnected
	StateChallengeExchanged
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateConnected:
		return "connected"
	case StateChallengeExchanged:
		return "challenge-exchanged"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is a Netlogon secure channel to one domain controller. Calls are
// serialized; use one Session per concurrent validation.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	binder  Binder
	rand    io.Reader
	now     func() time.Time
	metrics *metrics.ValidationMetrics
	sources []auth.HashSource

	state      State
	rpc        Caller
	pwHash     []byte
	strategy   string
	sessionKey SessionKey
	stored     Credential
	negotiated uint32
}

// Option configures a Session
type Option func(*Session)

// WithRand sets the source of client challenges
func WithRand(r io.Reader) Option {
	return func(s *Session) { s.rand = r }
}

// WithClock sets the clock used for authenticator timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMetrics records handshakes and validations
func WithMetrics(m *metrics.ValidationMetrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithHashSources replaces the credential strategies derived from the config
func WithHashSources(sources ...auth.HashSource) Option {
	return func(s *Session) { s.sources = sources }
}

// NewSession validates cfg and obtains the service account hash. No
// network traffic happens until Connect. A nil binder dials over TCP.
func NewSession(cfg *Config, binder Binder, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, newError(ErrConfiguration, "", StageConfig, errors.New("no configuration"))
	}

	s := &Session{
		cfg:    *cfg,
		binder: binder,
		rand:   rand.Reader,
		now:    time.Now,
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if s.binder == nil {
		s.binder = NewRPCBinder(&s.cfg)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sources == nil {
		s.sources = s.cfg.HashSources()
	}

	hash, strategy, err := auth.Acquire(s.sources...)
	if err != nil {
		return nil, newError(ErrConfiguration, s.cfg.Host, StageConfig, err)
	}
	s.pwHash = hash
	s.strategy = strategy

	debug.Event().Str("host", s.cfg.Host).Str("strategy", strategy).Msg("service account credentials acquired")
	return s, nil
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Strategy names the credential source that produced the account hash
func (s *Session) Strategy() string {
	return s.strategy
}

// NegotiatedFlags returns the flags the server accepted
func (s *Session) NegotiatedFlags() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiated
}

// Host returns the target domain controller
func (s *Session) Host() string {
	return s.cfg.Host
}

// Connect binds the transport and runs the challenge/authenticate
// handshake. On failure the session is Closed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnbound && s.state != StateClosed {
		return newError(ErrSessionState, s.cfg.Host, StageBind, fmt.Errorf("session is %s", s.state))
	}
	s.state = StateUnbound

	err := s.handshake(ctx)
	s.metrics.RecordHandshake(err == nil)
	if err != nil {
		s.teardown()
		debug.Event().Str("host", s.cfg.Host).Err(err).Msg("secure channel setup failed")
		return err
	}
	return nil
}

func (s *Session) handshake(ctx context.Context) error {
	host := s.cfg.Host

	rpc, err := s.binder.Bind(ctx, host)
	if err != nil {
		return newError(ErrTransport, host, StageBind, err)
	}
	s.rpc = rpc
	s.state = StateConnected

	var clientChallenge Challenge
	if _, err := io.ReadFull(s.rand, clientChallenge[:]); err != nil {
		return newError(ErrProtocol, host, StageChallenge, fmt.Errorf("failed to generate client challenge: %w", err))
	}
	defer zero(clientChallenge[:])

	debug.Event().Str("host", host).Str("stage", string(StageChallenge)).Int("opnum", OpNetrServerReqChallenge).Msg("requesting server challenge")

	challengeResp := &ServerReqChallengeResponse{}
	err = invoke(s.rpc, OpNetrServerReqChallenge, &ServerReqChallengeRequest{
		PrimaryName:     s.cfg.PrimaryName,
		ComputerName:    s.cfg.Hostname,
		ClientChallenge: clientChallenge,
	}, challengeResp)
	if err != nil {
		return newError(classify(err), host, StageChallenge, err)
	}
	defer zero(challengeResp.ServerChallenge[:])
	if challengeResp.Status != StatusSuccess {
		return newError(ErrProtocol, host, StageChallenge, NewStatusError(challengeResp.Status))
	}
	s.state = StateChallengeExchanged

	key, err := DeriveSessionKey(s.pwHash, clientChallenge, challengeResp.ServerChallenge)
	if err != nil {
		return newError(ErrConfiguration, host, StageAuthenticate, err)
	}
	clientCred := DeriveCredential(clientChallenge, key)
	serverCred := DeriveCredential(challengeResp.ServerChallenge, key)

	debug.Event().Str("host", host).Str("stage", string(StageAuthenticate)).Int("opnum", OpNetrServerAuthenticate2).Msg("authenticating secure channel")

	authResp := &ServerAuthenticate2Response{}
	err = invoke(s.rpc, OpNetrServerAuthenticate2, &ServerAuthenticate2Request{
		PrimaryName:       s.cfg.PrimaryName,
		AccountName:       s.cfg.ServiceAccount,
		SecureChannelType: s.cfg.SecureChannelType,
		ComputerName:      s.cfg.Hostname,
		ClientCredential:  clientCred,
		NegotiateFlags:    s.cfg.NegotiateFlags,
	}, authResp)
	if err != nil {
		zero(key[:])
		return newError(classify(err), host, StageAuthenticate, err)
	}
	if authResp.Status != StatusSuccess {
		zero(key[:])
		return newError(ErrProtocol, host, StageAuthenticate, NewStatusError(authResp.Status))
	}
	if !authResp.ServerCredential.Equal(serverCred) {
		zero(key[:])
		return newError(ErrProtocol, host, StageAuthenticate, errors.New("server credential mismatch"))
	}

	s.sessionKey = key
	s.stored = clientCred
	s.negotiated = authResp.NegotiateFlags
	s.state = StateAuthenticated

	debug.Event().Str("host", host).Str("stage", string(StageAuthenticate)).
		Str("flags", fmt.Sprintf("0x%08X", s.negotiated)).Msg("secure channel established")
	return nil
}

// SamLogon validates one network logon over the channel. The channel stays
// Authenticated on success; any error closes it.
func (s *Session) SamLogon(req LogonRequest) (*AccountAttributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return nil, newError(ErrSessionState, s.cfg.Host, StageLogon, fmt.Errorf("session is %s", s.state))
	}

	attrs, err := s.samLogon(req)
	if err != nil {
		s.teardown()
		return nil, err
	}
	return attrs, nil
}

func (s *Session) samLogon(req LogonRequest) (*AccountAttributes, error) {
	host := s.cfg.Host

	if len(req.NtResponse) > ndr.MaxCount || len(req.LmResponse) > ndr.MaxCount {
		return nil, newError(ErrMalformed, host, StageLogon, fmt.Errorf("challenge response exceeds %d bytes", ndr.MaxCount))
	}
	for _, name := range []string{req.Domain, req.User, req.Workstation} {
		if !unicodeStringFits(name) {
			return nil, newError(ErrMalformed, host, StageLogon, errors.New("identity string exceeds 65535 bytes"))
		}
	}

	control := req.ParameterControl
	if control == 0 {
		control = AllowServerTrustAccount | AllowWorkstationTrustAccount
	}

	timestamp := uint32(s.now().Unix())
	authenticator, next := NextAuthenticator(s.stored, s.sessionKey, timestamp)

	call := &SamLogonRequest{
		LogonServer:   s.cfg.PrimaryName,
		ComputerName:  s.cfg.Hostname,
		Authenticator: authenticator,
		LogonLevel:    LogonLevelNetwork,
		LogonInformation: &NetworkLogonInfo{
			Identity: LogonIdentity{
				DomainName:       req.Domain,
				ParameterControl: control,
				LogonID:          req.LogonID,
				UserName:         req.User,
				Workstation:      req.Workstation,
			},
			LmChallenge: req.Challenge,
			NtResponse:  ChallengeResponse{Data: req.NtResponse},
			LmResponse:  ChallengeResponse{Data: req.LmResponse},
		},
		ValidationLevel: ValidationLevelSamInfo2,
	}

	debug.Event().Str("host", host).Str("stage", string(StageLogon)).Int("opnum", OpNetrLogonSamLogon).
		Str("user", req.Domain+`\`+req.User).Msg("validating network logon")

	start := time.Now()
	resp := &SamLogonResponse{}
	if err := invoke(s.rpc, OpNetrLogonSamLogon, call, resp); err != nil {
		s.metrics.RecordValidation("error", time.Since(start))
		return nil, newError(classify(err), host, StageLogon, err)
	}

	if resp.Status != StatusSuccess {
		se := NewStatusError(resp.Status)
		s.metrics.RecordValidation(se.Outcome.String(), time.Since(start))
		debug.Event().Str("host", host).Str("stage", string(StageLogon)).
			Str("status", StatusName(resp.Status)).Msg("logon rejected")

		kind := ErrRPCStatus
		if se.Outcome == OutcomeAccountNotFound || se.Outcome == OutcomeInvalidCredentials {
			kind = ErrAuthentication
		}
		return nil, newError(kind, host, StageLogon, se)
	}

	expected, stored := ExpectedReturn(next, s.sessionKey)
	if resp.ReturnAuthenticator == nil || !resp.ReturnAuthenticator.Credential.Equal(expected) {
		s.metrics.RecordValidation("error", time.Since(start))
		return nil, newError(ErrProtocol, host, StageLogon, errors.New("return authenticator mismatch"))
	}
	s.stored = stored

	if resp.Validation == nil {
		s.metrics.RecordValidation("error", time.Since(start))
		return nil, newError(ErrMalformed, host, StageLogon, errors.New("no validation information returned"))
	}

	v := resp.Validation
	v.UserSessionKey = DecryptUserSessionKey(s.sessionKey, v.UserSessionKey, s.negotiated)
	attrs, err := Project(v)
	if err != nil {
		s.metrics.RecordValidation("error", time.Since(start))
		return nil, newError(ErrMalformed, host, StageLogon, err)
	}

	s.metrics.RecordValidation(OutcomeSuccess.String(), time.Since(start))
	debug.Event().Str("host", host).Str("stage", string(StageLogon)).
		Str("status", StatusName(StatusSuccess)).Str("sid", attrs.UserSID).Msg("logon validated")
	return attrs, nil
}

// Validate performs one SamLogon and disconnects whatever the outcome
func (s *Session) Validate(req LogonRequest) (*AccountAttributes, error) {
	defer s.Disconnect()
	return s.SamLogon(req)
}

// Disconnect releases the transport and clears the key material. It is
// safe to call more than once.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardown()
}

// teardown must be called with mu held
func (s *Session) teardown() error {
	var err error
	if s.rpc != nil {
		err = s.rpc.Close()
		s.rpc = nil
	}
	zero(s.sessionKey[:])
	zero(s.stored[:])
	s.negotiated = 0
	if s.state != StateClosed && s.state != StateUnbound {
		debug.Event().Str("host", s.cfg.Host).Str("from", s.state.String()).Msg("secure channel closed")
	}
	s.state = StateClosed
	return err
}

// Validate connects to the domain controller in cfg, validates one network
// logon and disconnects.
func Validate(ctx context.Context, cfg *Config, binder Binder, req LogonRequest, opts ...Option) (*AccountAttributes, error) {
	s, err := NewSession(cfg, binder, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s.Validate(req)
}
