package xmpppub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"atompub/internal/domain/repository"

	"github.com/cenkalti/backoff/v4"
	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"
)

const (
	defaultIQTimeout            = 5 * time.Second
	defaultMaxReconnectInterval = 5 * time.Minute
)

type SessionConfig struct {
	JID      string
	Secret   string
	Resource string
	// Address overrides the server address; when empty the client resolves
	// it from the JID domain.
	Address              string
	IQTimeout            time.Duration
	MaxReconnectInterval time.Duration
}

// Session owns the single XMPP connection shared by all feed tasks. It is
// established once at startup; on stream errors a background loop
// reconnects with capped exponential backoff while publish calls report
// ErrNotConnected.
type Session struct {
	client *xmpp.Client

	iqMu sync.Mutex // serializes outbound IQs across feed tasks

	mu        sync.RWMutex
	connected bool

	reconnect chan struct{}
	done      chan struct{}

	iqTimeout            time.Duration
	maxReconnectInterval time.Duration
}

// NewSession connects to the XMPP server. A failure here is fatal for the
// process; reconnection only covers drops after startup.
func NewSession(cfg SessionConfig) (*Session, error) {
	s := &Session{
		reconnect:            make(chan struct{}, 1),
		done:                 make(chan struct{}),
		iqTimeout:            cfg.IQTimeout,
		maxReconnectInterval: cfg.MaxReconnectInterval,
	}
	if s.iqTimeout == 0 {
		s.iqTimeout = defaultIQTimeout
	}
	if s.maxReconnectInterval == 0 {
		s.maxReconnectInterval = defaultMaxReconnectInterval
	}

	jid := cfg.JID
	if cfg.Resource != "" {
		jid = jid + "/" + cfg.Resource
	}

	clientCfg := &xmpp.Config{
		TransportConfiguration: xmpp.TransportConfiguration{
			Address: cfg.Address,
		},
		Jid:        jid,
		Credential: xmpp.Password(cfg.Secret),
	}

	client, err := xmpp.NewClient(clientCfg, xmpp.NewRouter(), s.onStreamError)
	if err != nil {
		return nil, fmt.Errorf("failed to create xmpp client: %w", err)
	}
	s.client = client

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to xmpp server: %w", err)
	}
	s.setConnected(true)

	go s.reconnectLoop()

	return s, nil
}

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *Session) onStreamError(err error) {
	slog.Warn("xmpp stream error", "error", err)
	s.setConnected(false)
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

func (s *Session) reconnectLoop() {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = s.maxReconnectInterval
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-s.done:
			return
		case <-s.reconnect:
		}

		bo.Reset()
		for {
			err := s.client.Connect()
			if err == nil {
				s.setConnected(true)
				slog.Info("xmpp session reestablished")
				break
			}

			wait := bo.NextBackOff()
			slog.Warn("xmpp reconnect failed", "error", err, "retry_in", wait)
			select {
			case <-s.done:
				return
			case <-time.After(wait):
			}
		}
	}
}

// sendIQ sends one IQ and waits for its response, bounded by the IQ
// timeout. Calls are serialized so entries within a cycle reach the
// service strictly in order.
func (s *Session) sendIQ(ctx context.Context, iq *stanza.IQ) (*stanza.IQ, error) {
	if !s.Connected() {
		return nil, repository.ErrNotConnected
	}

	s.iqMu.Lock()
	defer s.iqMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.iqTimeout)
	defer cancel()

	resCh, err := s.client.SendIQ(ctx, iq)
	if err != nil {
		return nil, fmt.Errorf("failed to send iq: %w", err)
	}

	select {
	case res := <-resCh:
		return &res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("iq response: %w", ctx.Err())
	}
}

// Close tears the session down. Safe to call once at shutdown.
func (s *Session) Close() {
	close(s.done)
	s.client.Disconnect()
}
