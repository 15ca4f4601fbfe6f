// Package coordinator provides an optional, purely advisory lock that
// keeps two adapter processes from mounting the same container+subfolder
// at once (§6.1). It does not, and cannot, make concurrent writers from a
// single mount coherent with each other - that non-goal (§9) is unchanged
// by this package; it only guards against two whole mount processes
// racing each other.
package coordinator

import (
	"fmt"

	"github.com/hashicorp/consul/api"
)

// Coordinator holds the advisory lock for one mount's lifetime.
type Coordinator struct {
	lock *api.Lock
	stop chan struct{}
}

// Acquire blocks until it holds the advisory lock for lockKey (typically
// "<container>/<subfolder>", stored in Consul under "blobmount/locks/"),
// or returns an error if addr is
// unreachable. A nil *Coordinator with a nil error is never returned;
// callers that want coordination disabled should skip calling Acquire.
func Acquire(addr, lockKey string) (*Coordinator, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("coordinator: creating consul client: %w", err)
	}

	lock, err := client.LockKey("blobmount/locks/" + lockKey)
	if err != nil {
		return nil, fmt.Errorf("coordinator: creating lock: %w", err)
	}

	lostCh, err := lock.Lock(nil)
	if err != nil {
		return nil, fmt.Errorf("coordinator: acquiring lock for %q: %w", lockKey, err)
	}
	if lostCh == nil {
		return nil, fmt.Errorf("coordinator: lock for %q held by another mount", lockKey)
	}

	return &Coordinator{lock: lock, stop: lostCh}, nil
}

// Lost returns a channel that closes if the session backing this lock is
// lost (e.g. the Consul agent this process talked to died). Callers
// should treat that as "another process may now also believe it holds
// this mount" and unmount defensively.
func (c *Coordinator) Lost() <-chan struct{} {
	return c.stop
}

// Release gives up the advisory lock.
func (c *Coordinator) Release() error {
	return c.lock.Unlock()
}
