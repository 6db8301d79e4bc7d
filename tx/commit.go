package tx

import (
	"fmt"

	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
)

type CommitRecord struct {
	txNum int64
}

// NewCommitRecord creates a new CommitRecord from a Page.
func NewCommitRecord(page *file.Page) (*CommitRecord, error) {
	txNumPos := intBytes
	txNum := page.GetInt(txNumPos)

	return &CommitRecord{txNum: int64(txNum)}, nil
}

// Op returns the type of the log record.
func (r *CommitRecord) Op() LogRecordType {
	return Commit
}

// TxNumber returns the transaction number stored in the log record.
func (r *CommitRecord) TxNumber() int64 {
	return r.txNum
}

// Undo does nothing. CommitRecord does not change any data.
func (r *CommitRecord) Undo(_ *Transaction) error {
	return nil
}

// String returns a string representation of the log record.
func (r *CommitRecord) String() string {
	return fmt.Sprintf("<COMMIT %d>", r.txNum)
}

// WriteCommitToLog writes a commit record to the log. This log record contains the Commit operator,
// followed by the transaction id.
// The method returns the LSN of the new log record.
func WriteCommitToLog(logManager *log.Manager, txNum int64) (int64, error) {
	record := make([]byte, 2*intBytes)

	page := file.NewPageFromBytes(record)
	if err := page.SetInt(0, int32(Commit)); err != nil {
		return -1, err
	}
	if err := page.SetInt(intBytes, int32(txNum)); err != nil {
		return -1, err
	}

	return logManager.Append(record)
}
