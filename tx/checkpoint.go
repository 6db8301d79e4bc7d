package tx

import (
	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
)

type CheckpointRecord struct{}

// NewCheckpointRecord creates a new CheckpointRecord. Checkpoint records
// carry no payload beyond the operation code.
func NewCheckpointRecord() (*CheckpointRecord, error) {
	return &CheckpointRecord{}, nil
}

// Op returns the type of the log record.
func (r *CheckpointRecord) Op() LogRecordType {
	return Checkpoint
}

// TxNumber returns a dummy, negative transaction number: checkpoint records
// are not associated with any one transaction.
func (r *CheckpointRecord) TxNumber() int64 {
	return -1
}

// Undo does nothing. CheckpointRecord does not change any data.
func (r *CheckpointRecord) Undo(_ *Transaction) error {
	return nil
}

// String returns a string representation of the log record.
func (r *CheckpointRecord) String() string {
	return "<CHECKPOINT>"
}

// WriteCheckpointToLog writes a checkpoint record to the log. This log
// record contains the Checkpoint operator and nothing else.
// The method returns the LSN of the new log record.
func WriteCheckpointToLog(logManager *log.Manager) (int64, error) {
	record := make([]byte, intBytes)

	page := file.NewPageFromBytes(record)
	if err := page.SetInt(0, int32(Checkpoint)); err != nil {
		return -1, err
	}

	return logManager.Append(record)
}
