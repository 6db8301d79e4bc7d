package tx

import (
	"github.com/declanmoriarty/txstore/buffer"
	"github.com/declanmoriarty/txstore/file"
)

// BufferList manages a transaction's currently pinned buffers, including
// blocks pinned more than once.
type BufferList struct {
	buffers       map[file.BlockId]*buffer.Buffer
	pins          []file.BlockId
	bufferManager *buffer.Manager
}

// NewBufferList creates a new BufferList.
func NewBufferList(bufferManager *buffer.Manager) *BufferList {
	return &BufferList{
		buffers:       make(map[file.BlockId]*buffer.Buffer),
		pins:          make([]file.BlockId, 0, 10),
		bufferManager: bufferManager,
	}
}

// GetBuffer returns the buffer pinned to the specified block.
// The method returns nil if the transaction has not pinned the block.
func (bl *BufferList) GetBuffer(block *file.BlockId) *buffer.Buffer {
	return bl.buffers[*block]
}

// Pin pins the block and keeps track of the buffer internally.
func (bl *BufferList) Pin(block *file.BlockId) error {
	buff, err := bl.bufferManager.Pin(block)
	if err != nil {
		return err
	}
	bl.buffers[*block] = buff
	bl.pins = append(bl.pins, *block)
	return nil
}

// Unpin releases one pin of the block. The underlying buffer is only
// unpinned through the buffer manager once; if the transaction had pinned
// the same block more than once, the buffer stays tracked until the last
// pin is released.
func (bl *BufferList) Unpin(block *file.BlockId) {
	buff, ok := bl.buffers[*block]
	if !ok {
		return
	}
	bl.bufferManager.Unpin(buff)

	for i, b := range bl.pins {
		if b == *block {
			bl.pins = append(bl.pins[:i], bl.pins[i+1:]...)
			break
		}
	}

	stillPinned := false
	for _, b := range bl.pins {
		if b == *block {
			stillPinned = true
			break
		}
	}
	if !stillPinned {
		delete(bl.buffers, *block)
	}
}

// UnpinAll unpins every block this transaction has pinned and clears the
// internal bookkeeping.
func (bl *BufferList) UnpinAll() {
	for _, block := range bl.pins {
		bl.bufferManager.Unpin(bl.buffers[block])
	}
	bl.buffers = make(map[file.BlockId]*buffer.Buffer)
	bl.pins = make([]file.BlockId, 0, 10)
}
