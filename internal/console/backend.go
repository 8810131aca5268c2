package console

import (
	"ffui/internal/ipc"
)

// Backend is the daemon command surface the console drives. Command methods
// return the daemon's acknowledgement: false means the daemon looked at the
// job and declined (wrong state, unknown id), while an error means the
// round-trip itself failed. Bulk results align with the input ids.
type Backend interface {
	Wait(id string) (bool, error)
	Resume(id string) (bool, error)
	Cancel(id string) (bool, error)
	Restart(id string) (bool, error)
	WaitBulk(ids []string) ([]bool, error)
	ResumeBulk(ids []string) ([]bool, error)
	CancelBulk(ids []string) ([]bool, error)
	RestartBulk(ids []string) ([]bool, error)
	Remove(ids []string) (removed []string, err error)
	Reorder(orderedIDs []string) (bool, error)
}

// ipcBackend adapts the daemon RPC client to the Backend surface.
type ipcBackend struct {
	client *ipc.Client
}

// NewIPCBackend wraps a connected daemon client as a console backend.
func NewIPCBackend(client *ipc.Client) Backend {
	return &ipcBackend{client: client}
}

func (b *ipcBackend) Wait(id string) (bool, error)    { return b.client.Wait(id) }
func (b *ipcBackend) Resume(id string) (bool, error)  { return b.client.Resume(id) }
func (b *ipcBackend) Cancel(id string) (bool, error)  { return b.client.Cancel(id) }
func (b *ipcBackend) Restart(id string) (bool, error) { return b.client.Restart(id) }

func (b *ipcBackend) WaitBulk(ids []string) ([]bool, error)    { return b.client.WaitBulk(ids) }
func (b *ipcBackend) ResumeBulk(ids []string) ([]bool, error)  { return b.client.ResumeBulk(ids) }
func (b *ipcBackend) CancelBulk(ids []string) ([]bool, error)  { return b.client.CancelBulk(ids) }
func (b *ipcBackend) RestartBulk(ids []string) ([]bool, error) { return b.client.RestartBulk(ids) }

func (b *ipcBackend) Remove(ids []string) ([]string, error) {
	resp, err := b.client.Remove(ids)
	if err != nil {
		return nil, err
	}
	return resp.Removed, nil
}

func (b *ipcBackend) Reorder(orderedIDs []string) (bool, error) {
	return b.client.Reorder(orderedIDs)
}
