package buffer

import (
	"fmt"

	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
)

// Buffer wraps a page and tracks its disk block, pin count, and the
// transaction (and LSN of the log record) that last modified it.
type Buffer struct {
	fileManager *file.Manager
	logManager  *log.Manager
	contents    *file.Page
	block       *file.BlockId
	pins        int
	txnNum      int64
	lsn         int64
}

// NewBuffer creates an unassigned, unpinned buffer backed by a fresh page.
func NewBuffer(fileManager *file.Manager, logManager *log.Manager) *Buffer {
	return &Buffer{
		fileManager: fileManager,
		logManager:  logManager,
		contents:    file.NewPage(fileManager.BlockSize()),
		block:       nil,
		pins:        0,
		txnNum:      -1,
		lsn:         -1,
	}
}

// Contents returns the page wrapped by this buffer.
func (b *Buffer) Contents() *file.Page {
	return b.contents
}

// Block returns the disk block currently assigned to this buffer, or nil.
func (b *Buffer) Block() *file.BlockId {
	return b.block
}

// SetModified records that txnNum modified this buffer's contents at lsn.
// A negative lsn means the change did not generate a log record.
func (b *Buffer) SetModified(txnNum, lsn int64) {
	b.txnNum = txnNum
	if lsn >= 0 {
		b.lsn = lsn
	}
}

// isPinned reports whether the buffer has a nonzero pin count.
func (b *Buffer) isPinned() bool {
	return b.pins > 0
}

func (b *Buffer) modifyingTxn() int64 {
	return b.txnNum
}

// assignToBlock flushes the buffer's current contents (if dirty) and loads
// block's contents into it.
func (b *Buffer) assignToBlock(block *file.BlockId) error {
	if err := b.flush(); err != nil {
		return fmt.Errorf("failed to flush buffer for block %s: %w", b.block.String(), err)
	}
	b.block = block
	if err := b.fileManager.Read(block, b.contents); err != nil {
		return fmt.Errorf("failed to read block %s to buffer: %w", block.String(), err)
	}

	b.pins = 0
	return nil
}

// flush writes the buffer to its disk block if it is dirty, first flushing
// the log up to the LSN of the record that describes the modification.
func (b *Buffer) flush() error {
	if b.txnNum >= 0 {
		if err := b.logManager.Flush(b.lsn); err != nil {
			return fmt.Errorf("failed to flush log record for txn %d: %w", b.txnNum, err)
		}
		if err := b.fileManager.Write(b.block, b.contents); err != nil {
			return fmt.Errorf("failed to write block: %w", err)
		}
		b.txnNum = -1
	}
	return nil
}

func (b *Buffer) pin() { b.pins++ }

func (b *Buffer) unpin() { b.pins-- }
