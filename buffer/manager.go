package buffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
)

// maxWaitTime is the maximum time to wait for a buffer to become available.
const maxWaitTime = 10 * time.Second

// ErrBufferAbort is returned by Pin when no buffer becomes available
// within maxWaitTime.
var ErrBufferAbort = errors.New("buffer abort")

// Manager manages the pinning and unpinning of a fixed-size pool of buffers
// to disk blocks. It replaces buffers with a naive linear scan for any
// unpinned frame rather than an LRU or clock policy.
type Manager struct {
	bufferPool   []*Buffer
	numAvailable int
	mu           sync.Mutex
	cond         *sync.Cond
}

// NewManager creates a buffer manager having the specified number of buffer
// slots, backed by fileManager and logManager.
func NewManager(fileManager *file.Manager, logManager *log.Manager, numBuffers int) *Manager {
	bm := &Manager{
		bufferPool:   make([]*Buffer, numBuffers),
		numAvailable: numBuffers,
	}
	bm.cond = sync.NewCond(&bm.mu)
	for i := 0; i < numBuffers; i++ {
		bm.bufferPool[i] = NewBuffer(fileManager, logManager)
	}
	return bm
}

// Available returns the number of available (i.e., unpinned) buffers.
func (m *Manager) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numAvailable
}

// FlushAll flushes the dirty buffers modified by the specified transaction.
// Every waiter is woken to recheck its pin request once the flush attempt
// finishes, whether or not it succeeded.
func (m *Manager) FlushAll(txnNum int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.cond.Broadcast()

	for _, buff := range m.bufferPool {
		if buff.modifyingTxn() == txnNum {
			if err := buff.flush(); err != nil {
				return fmt.Errorf("failed to flush buffer for txn %d: %w", txnNum, err)
			}
		}
	}
	return nil
}

// Unpin unpins the specified buffer. If its pin count goes to zero, it increases the number
// of available buffers and notifies any waiting goroutines.
func (m *Manager) Unpin(buffer *Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buffer.unpin()
	if !buffer.isPinned() {
		m.numAvailable++
		m.cond.Broadcast()
	}
}

// Pin pins a buffer to the specified block, potentially waiting until a buffer becomes available.
// If no buffer becomes available within maxWaitTime, it returns ErrBufferAbort.
// This function uses the conditional-with-timeout pattern documented at
// https://pkg.go.dev/context#example-AfterFunc-Cond.
func (m *Manager) Pin(block *file.BlockId) (*Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitTime)
	defer cancel()

	var buff *Buffer
	var err error

	waitOnCond := func() error {
		// Set up a goroutine to cancel the wait when the context is done.
		done := make(chan struct{})
		defer close(done)

		go func() {
			select {
			case <-ctx.Done():
				m.mu.Lock()
				// Wake up the conditional.
				m.cond.Broadcast()
				m.mu.Unlock()
			case <-done:
				// The condition was met before the context was canceled.
			}
		}()

		for {
			if buff, err = m.tryToPin(block); err != nil {
				return err
			}
			if buff != nil {
				break
			}
			m.cond.Wait()

			// Check if the context has errored out (due to timeout).
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		return nil
	}

	if err := waitOnCond(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("could not pin block %s: %w", block.String(), ErrBufferAbort)
		}
		return nil, err
	}
	return buff, nil
}

// tryToPin tries to pin a buffer to the specified block.
// If there is already a buffer assigned to that block, it uses that buffer.
// Otherwise, it scans the pool for any unpinned frame.
// Returns nil if there are no available buffers.
// This method is not thread-safe.
func (m *Manager) tryToPin(block *file.BlockId) (*Buffer, error) {
	buffer := m.findExistingBuffer(block)
	if buffer == nil {
		buffer = m.chooseUnpinnedBuffer()
		if buffer == nil {
			return nil, nil
		}
		if err := buffer.assignToBlock(block); err != nil {
			return nil, err
		}
	}
	if !buffer.isPinned() {
		m.numAvailable--
	}
	buffer.pin()
	return buffer, nil
}

// findExistingBuffer searches for a buffer assigned to the specified block.
func (m *Manager) findExistingBuffer(block *file.BlockId) *Buffer {
	for _, buffer := range m.bufferPool {
		b := buffer.Block()
		if b != nil && b.Equals(block) {
			return buffer
		}
	}
	return nil
}

// chooseUnpinnedBuffer returns the first unpinned buffer found in the pool,
// in no particular order. This is the naive replacement strategy: no
// recency or frequency tracking, just the first free frame.
func (m *Manager) chooseUnpinnedBuffer() *Buffer {
	for _, buffer := range m.bufferPool {
		if !buffer.isPinned() {
			return buffer
		}
	}
	return nil
}
