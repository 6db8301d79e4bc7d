package tx

import (
	"fmt"

	"github.com/declanmoriarty/txstore/buffer"
	"github.com/declanmoriarty/txstore/log"
)

// RecoveryManager is responsible for recovering transactions from the log. It provides methods for committing,
// rolling back, and recovering transactions.
// Commit writes a commit record to the log, and flushes it to disk.
// Rollback rolls back the transaction, writes a rollback record to the log, and flushes it to the disk.
// Recover recovers uncompleted transactions from the log, and then writes a quiescent checkpoint record to the log, and flushes it.
type RecoveryManager struct {
	logManager    *log.Manager
	bufferManager *buffer.Manager
	transaction   *Transaction
	txNum         int64
}

// NewRecoveryManager creates a new RecoveryManager and immediately writes a
// Start record for the transaction to the log.
func NewRecoveryManager(tx *Transaction, txNum int64, logManager *log.Manager, bufferManager *buffer.Manager) (*RecoveryManager, error) {
	if _, err := WriteStartToLog(logManager, txNum); err != nil {
		return nil, fmt.Errorf("failed to write start record for txn %d: %w", txNum, err)
	}
	return &RecoveryManager{
		logManager:    logManager,
		bufferManager: bufferManager,
		transaction:   tx,
		txNum:         txNum,
	}, nil
}

// Commit flushes every buffer this transaction modified (and the log
// records that describe those modifications), then writes and flushes a
// commit record.
func (rm *RecoveryManager) Commit() error {
	if err := rm.bufferManager.FlushAll(rm.txNum); err != nil {
		return err
	}
	lsn, err := WriteCommitToLog(rm.logManager, rm.txNum)
	if err != nil {
		return err
	}
	return rm.logManager.Flush(lsn)
}

// Rollback undoes every change this transaction made, flushes the affected
// buffers, then writes and flushes a rollback record.
func (rm *RecoveryManager) Rollback() error {
	if err := rm.doRollback(); err != nil {
		return err
	}
	if err := rm.bufferManager.FlushAll(rm.txNum); err != nil {
		return err
	}
	lsn, err := WriteRollbackToLog(rm.logManager, rm.txNum)
	if err != nil {
		return err
	}
	return rm.logManager.Flush(lsn)
}

// Recover undoes the changes of every transaction that was in progress at
// the time of the most recent crash, flushes the affected buffers, then
// writes and flushes a quiescent checkpoint record.
func (rm *RecoveryManager) Recover() error {
	if err := rm.doRecover(); err != nil {
		return err
	}
	if err := rm.bufferManager.FlushAll(rm.txNum); err != nil {
		return err
	}
	lsn, err := WriteCheckpointToLog(rm.logManager)
	if err != nil {
		return err
	}
	return rm.logManager.Flush(lsn)
}

// SetInt writes a SetInt record to the log, recording the pre-image value
// the specified buffer currently holds at offset (before the caller
// overwrites it), and returns the record's LSN.
func (rm *RecoveryManager) SetInt(buff *buffer.Buffer, offset int) (int64, error) {
	oldVal := buff.Contents().GetInt(offset)
	block := buff.Block()
	return WriteSetIntToLog(rm.logManager, rm.txNum, block, offset, oldVal)
}

// SetString writes a SetString record to the log, recording the pre-image
// value the specified buffer currently holds at offset (before the caller
// overwrites it), and returns the record's LSN.
func (rm *RecoveryManager) SetString(buff *buffer.Buffer, offset int) (int64, error) {
	oldVal, err := buff.Contents().GetString(offset)
	if err != nil {
		return -1, err
	}
	block := buff.Block()
	return WriteSetStringToLog(rm.logManager, rm.txNum, block, offset, oldVal)
}

// doRollback iterates through the log in reverse order, undoing every
// record belonging to this transaction, stopping as soon as it reaches the
// transaction's own Start record.
func (rm *RecoveryManager) doRollback() error {
	iter, err := rm.logManager.Iterator()
	if err != nil {
		return err
	}

	for iter.HasNext() {
		bytes, err := iter.Next()
		if err != nil {
			return err
		}

		logRecord, err := CreateLogRecord(bytes)
		if err != nil {
			return err
		}

		if logRecord.TxNumber() == rm.txNum {
			if logRecord.Op() == Start {
				break
			}
			if err := logRecord.Undo(rm.transaction); err != nil {
				return err
			}
		}
	}
	return nil
}

// doRecover performs a complete crash recovery by scanning the log from
// most recent to least recent record. Any record belonging to a
// transaction that has not yet committed or rolled back is undone. The
// scan stops at the first Checkpoint record or at the end of the log.
func (rm *RecoveryManager) doRecover() error {
	finishedTransactions := make(map[int64]struct{})
	iter, err := rm.logManager.Iterator()
	if err != nil {
		return err
	}

	for iter.HasNext() {
		bytes, err := iter.Next()
		if err != nil {
			return err
		}

		logRecord, err := CreateLogRecord(bytes)
		if err != nil {
			return err
		}

		if logRecord.Op() == Checkpoint {
			return nil
		}

		if logRecord.Op() == Commit || logRecord.Op() == Rollback {
			finishedTransactions[logRecord.TxNumber()] = struct{}{}
		} else if _, done := finishedTransactions[logRecord.TxNumber()]; !done {
			if err := logRecord.Undo(rm.transaction); err != nil {
				return err
			}
		}
	}
	return nil
}
