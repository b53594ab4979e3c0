package ldapclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/sirupsen/logrus"
)

// Conn is the subset of *ldap.Conn a Session drives.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	SetTimeout(timeout time.Duration)
	Close() error
}

// DialFunc opens a transport connection to the directory described by cfg.
type DialFunc func(ctx context.Context, cfg Config) (Conn, error)

// Session is one connection plus bind. It is opened per logical operation and never reused after Close.
type Session struct {
	conn   Conn
	cfg    Config
	stop   func() bool
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

type options struct {
	dial DialFunc
}

// Option customises Open.
type Option func(*options)

// WithDialer replaces the network dialer, e.g. with an in-memory directory in tests.
func WithDialer(dial DialFunc) Option {
	return func(o *options) { o.dial = dial }
}

// Open dials the directory. The session closes itself if ctx is cancelled before Close is called.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{dial: DialNetwork}
	for _, opt := range opts {
		opt(&o)
	}

	tools.Log.WithFields(logrus.Fields{
		"url":      cfg.URL(),
		"protocol": cfg.Protocol,
	}).Debug("Connecting to LDAP")

	conn, err := o.dial(ctx, cfg)
	if err != nil {
		return nil, Classify("dial", err)
	}
	conn.SetTimeout(cfg.operationTimeout())

	s := &Session{conn: conn, cfg: cfg}
	s.mu.Lock()
	s.stop = context.AfterFunc(ctx, func() {
		tools.Log.WithField("url", cfg.URL()).Warn("Context cancelled, closing LDAP session")
		s.Close()
	})
	s.mu.Unlock()
	return s, nil
}

// Connect opens a session and binds with the configured service account.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	s, err := Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Bind(FormatBindIdentity(cfg, cfg.BindAccount), cfg.BindSecret); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// DialNetwork connects over TCP. Secure transport skips certificate verification because
// directory controllers in the target environments present self-issued certificates.
func DialNetwork(_ context.Context, cfg Config) (Conn, error) {
	dialer := &net.Dialer{Timeout: cfg.connectTimeout()}
	dialOpts := []ldap.DialOpt{ldap.DialWithDialer(dialer)}
	if cfg.Protocol == ProtocolSecure {
		dialOpts = append(dialOpts, ldap.DialWithTLSConfig(&tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // self-issued directory certificates
			ServerName:         cfg.Server,
		}))
	}
	conn, err := ldap.DialURL(cfg.URL(), dialOpts...)
	if err != nil {
		return nil, err
	}
	return netConn{conn}, nil
}

type netConn struct {
	*ldap.Conn
}

func (c netConn) Close() error {
	c.Conn.Close()
	return nil
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() Config { return s.cfg }

// Bind authenticates the session. Every failure is reported as an authentication error
// unless the transport itself failed.
func (s *Session) Bind(identity, secret string) error {
	if secret == "" {
		return &Error{Op: "bind", Kind: KindAuthentication, Text: "empty bind secret"}
	}
	err := Classify("bind", s.conn.Bind(identity, secret))
	if err == nil {
		tools.Log.WithField("identity", identity).Debug("Successfully bound to LDAP")
		return nil
	}
	if e, ok := err.(*Error); ok && e.Kind != KindConnection && e.Kind != KindTimeout {
		e.Kind = KindAuthentication
	}
	tools.Fields(logrus.Fields{
		"identity": identity,
		"error":    err,
	}).Error("LDAP bind failed")
	return err
}

// Search runs req and returns its entries. The result is finite and capped by req.SizeLimit; a
// server reporting sizeLimitExceeded alongside entries yields those entries.
func (s *Session) Search(req *ldap.SearchRequest) ([]*ldap.Entry, error) {
	if req.SizeLimit == 0 {
		req.SizeLimit = DefaultSearchSizeLimit
	}
	result, err := s.conn.Search(req)
	if err != nil {
		if sizeLimited(result, err) {
			tools.Log.WithFields(logrus.Fields{
				"base":    req.BaseDN,
				"limit":   req.SizeLimit,
				"entries": len(result.Entries),
			}).Debug("Search reached its size limit, using returned entries")
			return result.Entries, nil
		}
		return nil, Classify("search", err)
	}
	return result.Entries, nil
}

func sizeLimited(result *ldap.SearchResult, err error) bool {
	var ldapErr *ldap.Error
	return errors.As(err, &ldapErr) &&
		ldapErr.ResultCode == ldap.LDAPResultSizeLimitExceeded &&
		result != nil && len(result.Entries) > 0
}

// SearchOne is a base-scope read of dn.
func (s *Session) SearchOne(dn, filter string, attrs []string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		dn,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 0, false,
		filter,
		attrs,
		nil,
	)
	entries, err := s.Search(req)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &Error{Op: "search", Kind: KindNotFound, Code: ldap.LDAPResultNoSuchObject, Text: "no such object"}
	}
	return entries[0], nil
}

func (s *Session) Add(req *ldap.AddRequest) error {
	return Classify("add", s.conn.Add(req))
}

func (s *Session) Modify(req *ldap.ModifyRequest) error {
	return Classify("modify", s.conn.Modify(req))
}

// Close tears the connection down. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		stop := s.stop
		s.closed = true
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		if err := s.conn.Close(); err != nil {
			tools.Log.WithError(err).Debug("Error closing LDAP connection")
		}
		tools.Log.Debug("Closed LDAP connection")
	})
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
