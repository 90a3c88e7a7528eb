// Package noncelock serializes the "fetch nonce, sign, submit" sequence per
// signing account so concurrent writers never build transactions with the
// same nonce.
package noncelock

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrLockLost is the cause attached to a held context whose lock expired or
// was taken over before unlock was called.
var ErrLockLost = errors.New("nonce lock lost")

// Locker grants exclusive use of an account's next nonce until unlock is
// called. Work done under the lock should use held: it is cancelled on unlock
// and, for leased locks, as soon as the lease can no longer be guaranteed.
type Locker interface {
	Lock(ctx context.Context, account common.Address) (held context.Context, unlock func(), err error)
}

// Local is an in-process Locker. Waiters are released in no particular order.
type Local struct {
	mu    sync.Mutex
	slots map[common.Address]chan struct{}
}

func NewLocal() *Local {
	return &Local{slots: make(map[common.Address]chan struct{})}
}

func (l *Local) slot(account common.Address) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[account]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[account] = ch
	}
	return ch
}

func (l *Local) Lock(ctx context.Context, account common.Address) (context.Context, func(), error) {
	ch := l.slot(account)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	held, cancel := context.WithCancel(ctx)
	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel()
			<-ch
		})
	}, nil
}
