package tor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/textproto"
	"time"

	"github.com/cretz/bine/control"
)

var (
	ErrControlUnavailable = errors.New("tor control port unavailable")
	ErrControlAuth        = errors.New("tor control authentication failed")
	ErrControlSignal      = errors.New("tor control signal rejected")
)

// ControlChannel asks the proxy for a fresh exit identity.
type ControlChannel interface {
	NewIdentity(ctx context.Context) error
}

// controlConn is the subset of *control.Conn used here.
type controlConn interface {
	Authenticate(password string) error
	Signal(signal string) error
	Close() error
}

type dialFunc func(ctx context.Context, addr string) (controlConn, error)

// PortController speaks the Tor control protocol over TCP. A connection is
// opened per request and closed afterwards.
type PortController struct {
	addr     string
	password string
	dial     dialFunc
	logger   *slog.Logger
}

func NewPortController(addr, password string, logger *slog.Logger) *PortController {
	return &PortController{
		addr:     addr,
		password: password,
		dial:     dialControlPort,
		logger:   logger.With("component", "tor_control", "addr", addr),
	}
}

func (p *PortController) NewIdentity(ctx context.Context) error {
	conn, err := p.dial(ctx, p.addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrControlUnavailable, err)
	}
	defer conn.Close()

	if err := conn.Authenticate(p.password); err != nil {
		return fmt.Errorf("%w: %v", ErrControlAuth, err)
	}

	if err := conn.Signal("NEWNYM"); err != nil {
		return fmt.Errorf("%w: %v", ErrControlSignal, err)
	}

	p.logger.Debug("requested new identity")
	return nil
}

func dialControlPort(ctx context.Context, addr string) (controlConn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(deadline)
	} else {
		netConn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	return control.NewConn(textproto.NewConn(netConn)), nil
}
