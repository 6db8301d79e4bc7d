package tx

import (
	"fmt"

	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
)

type SetStringRecord struct {
	txNum  int64
	offset int
	value  string
	block  *file.BlockId
}

// NewSetStringRecord creates a new SetStringRecord from a Page. The
// transaction number sits at offset 8, behind an 8-byte reserved header
// slot, unlike the other record types which pack it at offset 4.
func NewSetStringRecord(page *file.Page) (*SetStringRecord, error) {
	txNumPos := longBytes
	txNum := page.GetInt(txNumPos)

	fileNamePos := txNumPos + intBytes
	fileName, err := page.GetString(fileNamePos)
	if err != nil {
		return nil, err
	}

	blockNumPos := fileNamePos + file.MaxLength(len(fileName))
	blockNum := page.GetInt(blockNumPos)
	block := file.NewBlockId(fileName, int(blockNum))

	offsetPos := blockNumPos + intBytes
	offset := page.GetInt(offsetPos)

	valuePos := offsetPos + intBytes
	value, err := page.GetString(valuePos)
	if err != nil {
		return nil, err
	}

	return &SetStringRecord{txNum: int64(txNum), offset: int(offset), value: value, block: block}, nil
}

// Op returns the type of the log record.
func (r *SetStringRecord) Op() LogRecordType {
	return SetString
}

// TxNumber returns the transaction number stored in the log record.
func (r *SetStringRecord) TxNumber() int64 {
	return r.txNum
}

// String returns a string representation of the log record.
func (r *SetStringRecord) String() string {
	return fmt.Sprintf("<SETSTRING %d %s %d %s>", r.txNum, r.block, r.offset, r.value)
}

// Undo replaces the specified data value with the value saved in the log record.
// The method pins a buffer to the specified block,
// calls the buffer's setString method to restore the saved value, and unpins the buffer.
func (r *SetStringRecord) Undo(tx *Transaction) error {
	if err := tx.Pin(r.block); err != nil {
		return err
	}
	defer tx.Unpin(r.block)
	return tx.SetString(r.block, r.offset, r.value, false) // Don't log the undo
}

// WriteSetStringToLog writes a set string record to the log. The record contains the specified transaction number, the
// filename and block number of the block containing the string, the offset of the string in the block, and its previous
// value.
// The method returns the LSN of the new log record.
func WriteSetStringToLog(logManager *log.Manager, txNum int64, block *file.BlockId, offset int, value string) (int64, error) {
	txNumPos := longBytes
	fileNamePos := txNumPos + intBytes
	fileName := block.Filename()

	blockNumPos := fileNamePos + file.MaxLength(len(fileName))
	blockNum := block.Number()

	offsetPos := blockNumPos + intBytes
	valuePos := offsetPos + intBytes
	recordLen := valuePos + file.MaxLength(len(value))

	recordBytes := make([]byte, recordLen)
	page := file.NewPageFromBytes(recordBytes)

	if err := page.SetInt(0, int32(SetString)); err != nil {
		return -1, err
	}
	if err := page.SetInt(txNumPos, int32(txNum)); err != nil {
		return -1, err
	}
	if err := page.SetString(fileNamePos, fileName); err != nil {
		return -1, err
	}
	if err := page.SetInt(blockNumPos, int32(blockNum)); err != nil {
		return -1, err
	}
	if err := page.SetInt(offsetPos, int32(offset)); err != nil {
		return -1, err
	}
	if err := page.SetString(valuePos, value); err != nil {
		return -1, err
	}

	return logManager.Append(recordBytes)
}
