package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"ffui/internal/queue"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
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

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("FFUI.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueState fetches a full queue snapshot.
func (c *Client) QueueState() (queue.State, error) {
	var resp QueueStateResponse
	if err := c.client.Call("FFUI.QueueState", QueueStateRequest{}, &resp); err != nil {
		return queue.State{}, err
	}
	return resp.State, nil
}

// QueueEvents long-polls for queue changes past the given cursors. The
// server blocks for up to waitMillis before returning an empty response.
func (c *Client) QueueEvents(afterSnapshot, afterDelta uint64, waitMillis int64) (*QueueEventsResponse, error) {
	var resp QueueEventsResponse
	req := QueueEventsRequest{
		AfterSnapshotRevision: afterSnapshot,
		AfterDeltaRevision:    afterDelta,
		WaitMillis:            waitMillis,
	}
	if err := c.client.Call("FFUI.QueueEvents", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit enqueues the given paths as manual jobs.
func (c *Client) Submit(paths []string, preset string) (*SubmitResponse, error) {
	var resp SubmitResponse
	req := SubmitRequest{Paths: paths, Preset: preset}
	if err := c.client.Call("FFUI.Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Wait pauses a processing job at its next checkpoint.
func (c *Client) Wait(id string) (bool, error) {
	return c.ack("FFUI.Wait", id)
}

// Resume returns a paused job to the queue.
func (c *Client) Resume(id string) (bool, error) {
	return c.ack("FFUI.Resume", id)
}

// Cancel aborts a job.
func (c *Client) Cancel(id string) (bool, error) {
	return c.ack("FFUI.Cancel", id)
}

// Restart re-runs a finished job from scratch.
func (c *Client) Restart(id string) (bool, error) {
	return c.ack("FFUI.Restart", id)
}

func (c *Client) ack(method, id string) (bool, error) {
	var resp AckResponse
	if err := c.client.Call(method, JobRequest{ID: id}, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// WaitBulk pauses several jobs, reporting per-id outcomes.
func (c *Client) WaitBulk(ids []string) ([]bool, error) {
	return c.bulk("FFUI.WaitBulk", ids)
}

// ResumeBulk resumes several jobs, reporting per-id outcomes.
func (c *Client) ResumeBulk(ids []string) ([]bool, error) {
	return c.bulk("FFUI.ResumeBulk", ids)
}

// CancelBulk cancels several jobs, reporting per-id outcomes.
func (c *Client) CancelBulk(ids []string) ([]bool, error) {
	return c.bulk("FFUI.CancelBulk", ids)
}

// RestartBulk restarts several jobs, reporting per-id outcomes.
func (c *Client) RestartBulk(ids []string) ([]bool, error) {
	return c.bulk("FFUI.RestartBulk", ids)
}

func (c *Client) bulk(method string, ids []string) ([]bool, error) {
	var resp BulkResponse
	if err := c.client.Call(method, BulkRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return resp.OK, nil
}

// Remove deletes terminal jobs from the queue.
func (c *Client) Remove(ids []string) (*RemoveResponse, error) {
	var resp RemoveResponse
	if err := c.client.Call("FFUI.Remove", RemoveRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearTerminal removes every finished job.
func (c *Client) ClearTerminal() (int, error) {
	var resp ClearTerminalResponse
	if err := c.client.Call("FFUI.ClearTerminal", ClearTerminalRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Reorder rewrites the waiting-queue order.
func (c *Client) Reorder(orderedIDs []string) (bool, error) {
	var resp AckResponse
	if err := c.client.Call("FFUI.Reorder", ReorderRequest{OrderedIDs: orderedIDs}, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// LogTail returns daemon log lines starting at the given byte offset.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("FFUI.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("FFUI.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
