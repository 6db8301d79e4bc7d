package log

import (
	"fmt"
	"os"
	"testing"

	"github.com/declanmoriarty/txstore/file"
	"github.com/stretchr/testify/assert"
)

// Helper function to create a new temporary FileMgr
func createTempFileMgr(blocksize int) (*file.Manager, func(), error) {
	tmpDir, err := os.MkdirTemp("", "filemgr_test")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	fm, err := file.NewManager(tmpDir, blocksize)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, nil, fmt.Errorf("failed to create FileMgr: %w", err)
	}

	cleanup := func() { os.RemoveAll(tmpDir) }
	return fm, cleanup, nil
}

func TestLogMgr_AppendAndIteratorConsistency(t *testing.T) {
	assert := assert.New(t)
	blockSize := 4096
	fm, cleanup, err := createTempFileMgr(blockSize)
	defer cleanup()
	assert.NoErrorf(err, "Error creating FileMgr: %v", err)

	logfile := "testlog"
	lm, err := NewManager(fm, logfile)
	assert.NoErrorf(err, "Error creating LogMgr: %v", err)

	// Append and flush multiple records, then verify consistency
	recordCount := 100
	records := make([][]byte, recordCount)
	for i := 0; i < recordCount; i++ {
		records[i] = []byte(fmt.Sprintf("log record %d", i+1))
		_, err := lm.Append(records[i])
		assert.NoErrorf(err, "Error appending record %d: %v", i+1, err)
	}

	// Verify with iterator in reverse order
	iterator, err := lm.Iterator()
	assert.NoErrorf(err, "Error creating log iterator: %v", err)

	for i := recordCount - 1; i >= 0; i-- {
		assert.Truef(iterator.HasNext(), "Expected more records, but iterator has none")

		rec, err := iterator.Next()
		assert.NoErrorf(err, "Error getting next record from iterator: %v", err)

		assert.Equal(rec, records[i])
	}

	assert.Falsef(iterator.HasNext(), "Expected no more records, but iterator has more")
}

// TestLogMgr_PartialFlushThenMoreAppends appends record1..record25, takes an
// iterator (forcing a flush), then appends record26..record50 and iterates
// again, confirming the second iterator sees all 50 records in reverse order
// and the first flush did not disturb later appends.
func TestLogMgr_PartialFlushThenMoreAppends(t *testing.T) {
	assert := assert.New(t)
	blockSize := 400
	fm, cleanup, err := createTempFileMgr(blockSize)
	defer cleanup()
	assert.NoError(err)

	lm, err := NewManager(fm, "testlog")
	assert.NoError(err)

	var records []string
	for i := 1; i <= 25; i++ {
		rec := fmt.Sprintf("record%d", i)
		records = append(records, rec)
		_, err := lm.Append([]byte(rec))
		assert.NoError(err)
	}

	// Force a flush by creating an iterator, then keep writing.
	_, err = lm.Iterator()
	assert.NoError(err)

	for i := 26; i <= 50; i++ {
		rec := fmt.Sprintf("record%d", i)
		records = append(records, rec)
		_, err := lm.Append([]byte(rec))
		assert.NoError(err)
	}

	it, err := lm.Iterator()
	assert.NoError(err)

	for i := len(records) - 1; i >= 0; i-- {
		assert.True(it.HasNext())
		rec, err := it.Next()
		assert.NoError(err)
		assert.Equal(records[i], string(rec))
	}
	assert.False(it.HasNext())
}
