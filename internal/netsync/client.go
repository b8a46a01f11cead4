package netsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"dsrec/internal/logging"
)

// ErrTimeout reports that no message from the pinned host arrived before the
// wait deadline. Callers retry.
var ErrTimeout = errors.New("sync wait timed out")

// ClientConfig selects the local endpoint subordinates listen on.
type ClientConfig struct {
	BindAddr string
	Port     int
}

// Receipt records when a message arrived.
type Receipt struct {
	// NICReceive is the kernel receive timestamp, zero when unavailable.
	NICReceive time.Time
	// Client is the local wall clock after the read returned.
	Client time.Time
}

// Client receives session control on a subordinate node.
type Client struct {
	conn   *net.UDPConn
	logger *slog.Logger

	readMu sync.Mutex
	buf    []byte
	oob    []byte

	mu   sync.Mutex
	host *net.UDPAddr
}

// NewClient binds the sync port with address reuse and kernel receive
// timestamps enabled.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	lc := net.ListenConfig{Control: clientSocketControl}
	address := net.JoinHostPort(cfg.BindAddr, strconv.Itoa(cfg.Port))
	pc, err := lc.ListenPacket(context.Background(), "udp4", address)
	if err != nil {
		return nil, fmt.Errorf("bind sync client %s: %w", address, err)
	}
	logger = logging.NewComponentLogger(logger, "netsync")
	logger.Info("sync client listening", logging.String("local", pc.LocalAddr().String()))
	return &Client{
		conn:   pc.(*net.UDPConn),
		logger: logger,
		buf:    make([]byte, 65535),
		oob:    make([]byte, 1024),
	}, nil
}

// LocalAddr returns the bound address.
func (c *Client) LocalAddr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

// Host returns the pinned master address, or nil before the first message.
func (c *Client) Host() *net.UDPAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host
}

// Wait returns the next message from the pinned host. Datagrams from other
// hosts are dropped. It returns ErrTimeout when timeout elapses, ctx.Err()
// when ctx ends, and a *MalformedMessageError for undecodable payloads.
func (c *Client) Wait(ctx context.Context, timeout time.Duration) (Message, Receipt, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, Receipt{}, err
		}
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return Message{}, Receipt{}, fmt.Errorf("set read deadline: %w", err)
		}
		n, oobn, _, addr, err := c.conn.ReadMsgUDP(c.buf, c.oob)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Message{}, Receipt{}, ctxErr
				}
				return Message{}, Receipt{}, ErrTimeout
			}
			return Message{}, Receipt{}, fmt.Errorf("read sync message: %w", err)
		}
		receipt := Receipt{
			NICReceive: receiveTimestamp(c.oob[:oobn]),
			Client:     time.Now(),
		}

		if !c.accept(addr) {
			c.logger.Debug("sync message from foreign host ignored", logging.String("peer", addr.String()))
			continue
		}

		payload := make([]byte, n)
		copy(payload, c.buf[:n])
		msg, err := Decode(payload)
		if err != nil {
			return Message{}, receipt, err
		}
		return msg, receipt, nil
	}
}

// accept pins the first sender's host and reports whether addr belongs to it.
// The master sends from an ephemeral port, so a restarted master keeps being
// followed as long as it runs on the same host.
func (c *Client) accept(addr *net.UDPAddr) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host == nil {
		c.host = addr
		c.logger.Info("sync host pinned", logging.String("peer", addr.String()))
		return true
	}
	if !c.host.IP.Equal(addr.IP) {
		return false
	}
	if c.host.Port != addr.Port {
		c.logger.Info("sync host source port changed; master restarted",
			logging.String("previous", c.host.String()),
			logging.String("peer", addr.String()),
		)
		c.host = addr
	}
	return true
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.conn.Close()
}
