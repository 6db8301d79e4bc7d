package tx

import (
	"fmt"

	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
)

// SetIntRecord records the value an integer held before a transaction
// overwrote it, so that Undo can restore it.
type SetIntRecord struct {
	txNum  int64
	offset int
	val    int32
	block  *file.BlockId
}

// NewSetIntRecord creates a new SetIntRecord from a Page. The transaction
// number sits at offset 8, behind an 8-byte reserved header slot, unlike
// the other record types which pack it at offset 4.
func NewSetIntRecord(page *file.Page) (*SetIntRecord, error) {
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

	valPos := offsetPos + intBytes
	val := page.GetInt(valPos)

	return &SetIntRecord{txNum: int64(txNum), offset: int(offset), val: val, block: block}, nil
}

// Op returns the type of the log record.
func (r *SetIntRecord) Op() LogRecordType {
	return SetInt
}

// TxNumber returns the transaction number stored in the log record.
func (r *SetIntRecord) TxNumber() int64 {
	return r.txNum
}

// String returns a string representation of the log record.
func (r *SetIntRecord) String() string {
	return fmt.Sprintf("<SETINT %d %s %d %d>", r.txNum, r.block, r.offset, r.val)
}

// Undo replaces the specified data value with the value saved in the log
// record. The method pins a buffer to the specified block, calls the
// buffer's SetInt method to restore the saved value, and unpins the buffer.
func (r *SetIntRecord) Undo(tx *Transaction) error {
	if err := tx.Pin(r.block); err != nil {
		return err
	}
	defer tx.Unpin(r.block)
	return tx.SetInt(r.block, r.offset, r.val, false) // Don't log the undo
}

// WriteSetIntToLog writes a set-int record to the log. The record contains
// the specified transaction number, the filename and block number of the
// block containing the integer, the offset of the integer in the block, and
// its previous value.
// The method returns the LSN of the new log record.
func WriteSetIntToLog(logManager *log.Manager, txNum int64, block *file.BlockId, offset int, val int32) (int64, error) {
	txNumPos := longBytes
	fileNamePos := txNumPos + intBytes
	fileName := block.Filename()

	blockNumPos := fileNamePos + file.MaxLength(len(fileName))
	blockNum := block.Number()

	offsetPos := blockNumPos + intBytes
	valPos := offsetPos + intBytes
	recordLen := valPos + intBytes

	recordBytes := make([]byte, recordLen)
	page := file.NewPageFromBytes(recordBytes)

	if err := page.SetInt(0, int32(SetInt)); err != nil {
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
	if err := page.SetInt(valPos, val); err != nil {
		return -1, err
	}

	return logManager.Append(recordBytes)
}
