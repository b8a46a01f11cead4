package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req any, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the node status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// Record starts a session on the master.
func (c *Client) Record() (*RecordResponse, error) {
	return call[RecordRequest, RecordResponse](c, "Record", RecordRequest{})
}

// Stop ends the current session.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopRequest, StopResponse](c, "Stop", StopRequest{})
}

// Cancel discards the current session.
func (c *Client) Cancel() (*CancelResponse, error) {
	return call[CancelRequest, CancelResponse](c, "Cancel", CancelRequest{})
}

// StepAction moves the action id by delta.
func (c *Client) StepAction(delta int) (*StepResponse, error) {
	return call[StepRequest, StepResponse](c, "StepAction", StepRequest{Delta: delta})
}

// StepPerson moves the person id by delta.
func (c *Client) StepPerson(delta int) (*StepResponse, error) {
	return call[StepRequest, StepResponse](c, "StepPerson", StepRequest{Delta: delta})
}

// SetShot sets the shot id.
func (c *Client) SetShot(shot int) (*SetShotResponse, error) {
	return call[SetShotRequest, SetShotResponse](c, "SetShot", SetShotRequest{Shot: shot})
}

// Sessions lists catalogued sessions.
func (c *Client) Sessions(req SessionsRequest) (*SessionsResponse, error) {
	return call[SessionsRequest, SessionsResponse](c, "Sessions", req)
}

// Snapshot fetches the latest preview of kind as PNG.
func (c *Client) Snapshot(kind string) (*SnapshotResponse, error) {
	return call[SnapshotRequest, SnapshotResponse](c, "Snapshot", SnapshotRequest{Kind: kind})
}
