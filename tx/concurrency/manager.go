package concurrency

import "github.com/declanmoriarty/txstore/file"

// globalLockTable is shared by every transaction's concurrency Manager, so
// that a lock held by one transaction is visible to all others.
var globalLockTable = NewLockTable()

// lockType records which kind of lock a transaction's Manager believes it
// holds on a block.
type lockType int

const (
	sharedLock lockType = iota
	exclusiveLock
)

// Manager tracks the locks a single transaction holds and talks to the
// shared LockTable on its behalf, implementing strict two-phase locking:
// locks are acquired as needed and all released together at Release.
type Manager struct {
	lockTable *LockTable
	locks     map[file.BlockId]lockType
}

// NewManager creates a concurrency Manager bound to the package-wide lock
// table.
func NewManager() *Manager {
	return &Manager{lockTable: globalLockTable, locks: make(map[file.BlockId]lockType)}
}

// SLock obtains a shared lock on the block, if the transaction does not
// already hold a lock (of either kind) on it.
func (m *Manager) SLock(block *file.BlockId) error {
	if _, ok := m.locks[*block]; !ok {
		if err := m.lockTable.SLock(block); err != nil {
			return err
		}
		m.locks[*block] = sharedLock
	}
	return nil
}

// XLock obtains an exclusive lock on the block. If the transaction does not
// already hold one, it first obtains a shared lock (per the slock-before-
// xlock protocol) and then upgrades to exclusive.
func (m *Manager) XLock(block *file.BlockId) error {
	if !m.hasXLock(block) {
		if err := m.SLock(block); err != nil {
			return err
		}
		if err := m.lockTable.XLock(block); err != nil {
			return err
		}
		m.locks[*block] = exclusiveLock
	}
	return nil
}

// Release releases every lock this transaction holds.
func (m *Manager) Release() {
	for block := range m.locks {
		b := block
		m.lockTable.Unlock(&b)
	}
	m.locks = make(map[file.BlockId]lockType)
}

func (m *Manager) hasXLock(block *file.BlockId) bool {
	lock, ok := m.locks[*block]
	return ok && lock == exclusiveLock
}
