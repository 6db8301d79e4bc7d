package tx

import (
	"fmt"

	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
)

type StartRecord struct {
	txNum int64
}

// NewStartRecord creates a new StartRecord from a Page.
func NewStartRecord(page *file.Page) (*StartRecord, error) {
	txNumPos := intBytes
	txNum := page.GetInt(txNumPos)

	return &StartRecord{txNum: int64(txNum)}, nil
}

// Op returns the type of the log record.
func (r *StartRecord) Op() LogRecordType {
	return Start
}

// TxNumber returns the transaction number stored in the log record.
func (r *StartRecord) TxNumber() int64 {
	return r.txNum
}

// Undo does nothing. StartRecord does not change any data.
func (r *StartRecord) Undo(_ *Transaction) error {
	return nil
}

// String returns a string representation of the log record.
func (r *StartRecord) String() string {
	return fmt.Sprintf("<START %d>", r.txNum)
}

// WriteStartToLog writes a start record to the log. This log record contains the Start operator,
// followed by the transaction id.
// The method returns the LSN of the new log record.
func WriteStartToLog(logManager *log.Manager, txNum int64) (int64, error) {
	record := make([]byte, 2*intBytes)

	page := file.NewPageFromBytes(record)
	if err := page.SetInt(0, int32(Start)); err != nil {
		return -1, err
	}
	if err := page.SetInt(intBytes, int32(txNum)); err != nil {
		return -1, err
	}

	return logManager.Append(record)
}
