package tx

import (
	"fmt"

	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
)

type RollbackRecord struct {
	txNum int64
}

// NewRollbackRecord creates a new RollbackRecord from a Page.
func NewRollbackRecord(page *file.Page) (*RollbackRecord, error) {
	txNumPos := intBytes
	txNum := page.GetInt(txNumPos)
	return &RollbackRecord{txNum: int64(txNum)}, nil
}

// Op returns the type of the log record.
func (r *RollbackRecord) Op() LogRecordType {
	return Rollback
}

// TxNumber returns the transaction number stored in the log record.
func (r *RollbackRecord) TxNumber() int64 {
	return r.txNum
}

// Undo does nothing. RollbackRecord does not change any data.
func (r *RollbackRecord) Undo(_ *Transaction) error {
	return nil
}

// String returns a string representation of the log record.
func (r *RollbackRecord) String() string {
	return fmt.Sprintf("<ROLLBACK %d>", r.txNum)
}

// WriteRollbackToLog writes a rollback record to the log. This log record contains the Rollback operator,
// followed by the transaction id.
// The method returns the LSN of the new log record.
func WriteRollbackToLog(logManager *log.Manager, txNum int64) (int64, error) {
	record := make([]byte, 2*intBytes)

	page := file.NewPageFromBytes(record)
	if err := page.SetInt(0, int32(Rollback)); err != nil {
		return -1, err
	}
	if err := page.SetInt(intBytes, int32(txNum)); err != nil {
		return -1, err
	}

	return logManager.Append(record)
}
