package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/declanmoriarty/txstore/file"
)

// maxWaitTime is how long a transaction waits for a conflicting lock to
// clear before giving up.
const maxWaitTime = 10 * time.Second

// ErrLockAbort is returned when a lock request could not be granted within
// maxWaitTime.
var ErrLockAbort = errors.New("lock abort")

// LockTable tracks the locks held on each block, across every transaction
// in the system. A positive value records the number of shared locks held;
// -1 records a single exclusive lock. There is one wait list shared by all
// blocks: whenever the last lock on any block is released, every waiter
// re-checks whether its own request can now be granted. Releasing one of
// several shared locks on a block wakes no one.
type LockTable struct {
	locks map[file.BlockId]int
	mu    sync.Mutex
	cond  *sync.Cond
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	lt := &LockTable{locks: make(map[file.BlockId]int)}
	lt.cond = sync.NewCond(&lt.mu)
	return lt
}

// SLock grants a shared lock on block, blocking while an exclusive lock is
// held by another transaction. Returns ErrLockAbort if the wait exceeds
// maxWaitTime.
func (lt *LockTable) SLock(block *file.BlockId) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitTime)
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		lt.cond.L.Lock()
		lt.cond.Broadcast()
		lt.cond.L.Unlock()
	})
	defer stop()

	for {
		if !lt.hasXLock(block) {
			lt.locks[*block] = lt.getLockVal(block) + 1
			return nil
		}

		lt.cond.Wait()

		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("could not acquire shared lock on block %s: %w", block.String(), ErrLockAbort)
			}
			return ctx.Err()
		}
	}
}

// XLock grants an exclusive lock on block. The caller is assumed to already
// hold a shared lock on the block (the concurrency Manager enforces the
// slock-before-xlock upgrade protocol); XLock blocks while any other
// transaction holds a shared lock on the block, and returns ErrLockAbort if
// the wait exceeds maxWaitTime.
func (lt *LockTable) XLock(block *file.BlockId) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitTime)
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		lt.cond.L.Lock()
		lt.cond.Broadcast()
		lt.cond.L.Unlock()
	})
	defer stop()

	for {
		if !lt.hasOtherSLocks(block) {
			lt.locks[*block] = -1
			return nil
		}

		lt.cond.Wait()

		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("could not acquire exclusive lock on block %s: %w", block.String(), ErrLockAbort)
			}
			return ctx.Err()
		}
	}
}

// Unlock releases one lock on block. If this was the last lock on the
// block, every waiting transaction is woken up to recheck its request.
func (lt *LockTable) Unlock(block *file.BlockId) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	val := lt.getLockVal(block)
	if val > 1 {
		lt.locks[*block] = val - 1
	} else {
		delete(lt.locks, *block)
		lt.cond.Broadcast()
	}
}

func (lt *LockTable) hasXLock(block *file.BlockId) bool {
	return lt.getLockVal(block) < 0
}

// hasOtherSLocks reports whether more than one shared lock is held on the
// block — i.e. a transaction other than the caller (who is assumed to
// already hold one) also has it s-locked.
func (lt *LockTable) hasOtherSLocks(block *file.BlockId) bool {
	return lt.getLockVal(block) > 1
}

func (lt *LockTable) getLockVal(block *file.BlockId) int {
	return lt.locks[*block]
}
