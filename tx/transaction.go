package tx

import (
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/declanmoriarty/txstore/buffer"
	"github.com/declanmoriarty/txstore/file"
	logmgr "github.com/declanmoriarty/txstore/log"
	"github.com/declanmoriarty/txstore/tx/concurrency"
)

// EndOfFile is the block number used as a stand-in "block" when a
// transaction wants to lock the end of a file (to serialize Size/Append
// against each other and prevent phantom reads).
const EndOfFile = -1

var (
	nextTxNum   int64
	nextTxNumMu sync.Mutex
)

// nextTxNumber increments and returns the next transaction number. Numbers
// are handed out by a monotonic in-memory counter; they are not persisted
// and restart from 1 on process start.
func nextTxNumber() int64 {
	nextTxNumMu.Lock()
	defer nextTxNumMu.Unlock()
	nextTxNum++
	return nextTxNum
}

// Transaction is the client-facing handle on a single unit of work: it
// bundles together the recovery and concurrency state for the transaction
// and provides block-granular reads and writes backed by the buffer pool.
type Transaction struct {
	recoverManager     *RecoveryManager
	concurrencyManager *concurrency.Manager
	bufferManager      *buffer.Manager
	fileManager        *file.Manager
	txNum              int64
	myBuffers          *BufferList
}

// NewTransaction creates a new Transaction and its associated recovery and
// concurrency managers, and writes a Start record for it to the log. This
// method depends on the file, log, and buffer managers, which are created
// once during system startup and shared across every transaction.
func NewTransaction(fileManager *file.Manager, logManager *logmgr.Manager, bufferManager *buffer.Manager) (*Transaction, error) {
	tx := &Transaction{
		fileManager:        fileManager,
		bufferManager:      bufferManager,
		txNum:              nextTxNumber(),
		concurrencyManager: concurrency.NewManager(),
		myBuffers:          NewBufferList(bufferManager),
	}
	recoverManager, err := NewRecoveryManager(tx, tx.txNum, logManager, bufferManager)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction %d: %w", tx.txNum, err)
	}
	tx.recoverManager = recoverManager
	return tx, nil
}

// Commit commits the current transaction.
// Flushes all modified buffers (and their log records),
// Writes and flushes a commit record to the log,
// Releases all the locks, and unpins any pinned buffers.
func (tx *Transaction) Commit() error {
	if err := tx.recoverManager.Commit(); err != nil {
		return err
	}
	log.Printf("transaction %d committed", tx.txNum)
	tx.concurrencyManager.Release()
	tx.myBuffers.UnpinAll()
	return nil
}

// Rollback rolls back the current transaction.
// Undoes any modified values,
// Flushes those buffers,
// Writes and flushes a rollback record to the log,
// Releases all the locks, and unpins any pinned buffers.
func (tx *Transaction) Rollback() error {
	if err := tx.recoverManager.Rollback(); err != nil {
		return err
	}
	log.Printf("transaction %d rolled back", tx.txNum)
	tx.concurrencyManager.Release()
	tx.myBuffers.UnpinAll()
	return nil
}

// Recover flushes the buffers this transaction modified to disk, then goes through the log, rolling back all uncommitted transactions.
// Finally, writes a quiescent checkpoint record to the log. This method is called during system startup, before any
// user transactions begin.
func (tx *Transaction) Recover() error {
	if err := tx.bufferManager.FlushAll(tx.txNum); err != nil {
		return err
	}
	if err := tx.recoverManager.Recover(); err != nil {
		return err
	}
	log.Printf("recovery complete")
	return nil
}

// Pin pins the specified block.
// The transaction manages the buffer for the client.
func (tx *Transaction) Pin(block *file.BlockId) error {
	return tx.myBuffers.Pin(block)
}

// Unpin unpins the specified block.
// The transaction looks up the buffer pinned to this block, and unpins it.
func (tx *Transaction) Unpin(block *file.BlockId) {
	tx.myBuffers.Unpin(block)
}

// GetInt returns the integer value stored at the specified offset of the specified block.
// The method first obtains an SLock on the block,
// then it calls the buffer to retrieve the value.
func (tx *Transaction) GetInt(block *file.BlockId, offset int) (int32, error) {
	if err := tx.concurrencyManager.SLock(block); err != nil {
		return math.MinInt32, err
	}
	buff := tx.myBuffers.GetBuffer(block)
	if buff == nil {
		return math.MinInt32, fmt.Errorf("block %s not pinned: %w", block, ErrTransactionAbort)
	}
	return buff.Contents().GetInt(offset), nil
}

// GetString returns the string value stored at the specified offset of the specified block.
// The method first obtains an SLock on the block,
// then it calls the buffer to retrieve the value.
func (tx *Transaction) GetString(block *file.BlockId, offset int) (string, error) {
	if err := tx.concurrencyManager.SLock(block); err != nil {
		return "", err
	}
	buff := tx.myBuffers.GetBuffer(block)
	if buff == nil {
		return "", fmt.Errorf("block %s not pinned: %w", block, ErrTransactionAbort)
	}
	return buff.Contents().GetString(offset)
}

// SetInt stores an integer at the specified offset of the specified block.
// The method first obtains an XLock on the block.
// It then reads the current value at that offset,
// puts it into an update log record, and writes that record to the log.
// Finally, it calls the buffer to store the value,
// passing in the LSN of the log record and the transaction's ID.
func (tx *Transaction) SetInt(block *file.BlockId, offset int, val int32, logIt bool) error {
	var err error
	if err = tx.concurrencyManager.XLock(block); err != nil {
		return err
	}
	buff := tx.myBuffers.GetBuffer(block)
	if buff == nil {
		return fmt.Errorf("block %s not pinned: %w", block, ErrTransactionAbort)
	}

	var lsn int64 = -1
	if logIt {
		if lsn, err = tx.recoverManager.SetInt(buff, offset); err != nil {
			return err
		}
	}

	page := buff.Contents()
	if err = page.SetInt(offset, val); err != nil {
		return err
	}
	buff.SetModified(tx.txNum, lsn)
	return nil
}

// SetString stores a string at the specified offset of the specified block.
// The method first obtains an XLock on the block.
// It then reads the current value at that offset,
// puts it into an update log record, and writes that record to the log.
// Finally, it calls the buffer to store the value,
// passing in the LSN of the log record and the transaction's ID.
func (tx *Transaction) SetString(block *file.BlockId, offset int, val string, logIt bool) error {
	var err error
	if err = tx.concurrencyManager.XLock(block); err != nil {
		return err
	}
	buff := tx.myBuffers.GetBuffer(block)
	if buff == nil {
		return fmt.Errorf("block %s not pinned: %w", block, ErrTransactionAbort)
	}

	var lsn int64 = -1
	if logIt {
		if lsn, err = tx.recoverManager.SetString(buff, offset); err != nil {
			return err
		}
	}

	page := buff.Contents()
	if err = page.SetString(offset, val); err != nil {
		return err
	}
	buff.SetModified(tx.txNum, lsn)
	return nil
}

// Size returns the number of blocks in the specified file.
// This method first obtains an SLock on the "end of file" marker,
// before asking the file manager to return the file size.
// This is necessary to prevent another transaction from adding a block to the file
// while this transaction is counting the blocks and causing phantom reads.
func (tx *Transaction) Size(filename string) (int, error) {
	dummyBlock := file.NewBlockId(filename, EndOfFile)
	if err := tx.concurrencyManager.SLock(dummyBlock); err != nil {
		return -1, err
	}
	return tx.fileManager.Length(filename)
}

// Append appends a new block to the end of the specified file and returns a reference to it.
// This method first obtains an XLock on the "end of file" marker, before performing the append operation.
// This is necessary to prevent another transaction from reading the size of the file while this append is in progress.
// This helps prevent phantom reads.
func (tx *Transaction) Append(filename string) (*file.BlockId, error) {
	dummyBlock := file.NewBlockId(filename, EndOfFile)
	if err := tx.concurrencyManager.XLock(dummyBlock); err != nil {
		return nil, err
	}
	return tx.fileManager.Append(filename)
}

// BlockSize returns the size of a block in the database.
func (tx *Transaction) BlockSize() int {
	return tx.fileManager.BlockSize()
}

// AvailableBuffers returns the number of available (unpinned) buffers.
func (tx *Transaction) AvailableBuffers() int {
	return tx.bufferManager.Available()
}

// TxNum returns the transaction number.
func (tx *Transaction) TxNum() int64 {
	return tx.txNum
}
