package tx

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/declanmoriarty/txstore/buffer"
	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
	"github.com/declanmoriarty/txstore/tx/concurrency"
)

// TestConcurrency exercises the classic three-transaction lock-ordering
// scenario: A takes slocks on blocks 1 and 2 in order; B takes an xlock on
// block 2 then requests an slock on block 1; C takes an xlock on block 1
// then requests an slock on block 2. The scenario is only satisfiable if
// each transaction's lock requests interleave correctly with the others'
// releases; none should lock-abort given the 10 second timeout.
func TestConcurrency(t *testing.T) {
	dbDir, err := os.MkdirTemp("", "concurrencytest")
	assert.NoError(t, err, "Error initializing file manager")
	defer func() { _ = os.RemoveAll(dbDir) }()

	fm, err := file.NewManager(dbDir, 400)
	assert.NoError(t, err, "Error initializing file manager")

	lm, err := log.NewManager(fm, "logfile")
	assert.NoError(t, err)
	bm := buffer.NewManager(fm, lm, 8) // 8 buffers

	var wg sync.WaitGroup
	wg.Add(3)

	errCh := make(chan error, 3)

	go func() {
		defer wg.Done()
		errCh <- transactionA(fm, lm, bm)
	}()
	go func() {
		defer wg.Done()
		errCh <- transactionB(fm, lm, bm)
	}()
	go func() {
		defer wg.Done()
		errCh <- transactionC(fm, lm, bm)
	}()

	wg.Wait()
	close(errCh)

	for err := range errCh {
		assert.NoError(t, err)
	}
}

func transactionA(fm *file.Manager, lm *log.Manager, bm *buffer.Manager) error {
	txA, err := NewTransaction(fm, lm, bm)
	if err != nil {
		return err
	}
	blk1 := file.NewBlockId("concurrencytestfile", 1)
	blk2 := file.NewBlockId("concurrencytestfile", 2)

	if err := txA.Pin(blk1); err != nil {
		return err
	}
	if err := txA.Pin(blk2); err != nil {
		return err
	}

	if _, err := txA.GetInt(blk1, 0); err != nil {
		return err
	}
	time.Sleep(1 * time.Second)
	if _, err := txA.GetInt(blk2, 0); err != nil {
		return err
	}
	return txA.Commit()
}

func transactionB(fm *file.Manager, lm *log.Manager, bm *buffer.Manager) error {
	txB, err := NewTransaction(fm, lm, bm)
	if err != nil {
		return err
	}
	blk1 := file.NewBlockId("concurrencytestfile", 1)
	blk2 := file.NewBlockId("concurrencytestfile", 2)

	if err := txB.Pin(blk1); err != nil {
		return err
	}
	if err := txB.Pin(blk2); err != nil {
		return err
	}

	if err := txB.SetInt(blk2, 0, 0, false); err != nil {
		if errors.Is(err, concurrency.ErrLockAbort) {
			_ = txB.Rollback()
		}
		return err
	}
	time.Sleep(1 * time.Second)
	if _, err := txB.GetInt(blk1, 0); err != nil {
		if errors.Is(err, concurrency.ErrLockAbort) {
			_ = txB.Rollback()
		}
		return err
	}
	return txB.Commit()
}

func transactionC(fm *file.Manager, lm *log.Manager, bm *buffer.Manager) error {
	txC, err := NewTransaction(fm, lm, bm)
	if err != nil {
		return err
	}
	blk1 := file.NewBlockId("concurrencytestfile", 1)
	blk2 := file.NewBlockId("concurrencytestfile", 2)

	if err := txC.Pin(blk1); err != nil {
		return err
	}
	if err := txC.Pin(blk2); err != nil {
		return err
	}

	time.Sleep(500 * time.Millisecond)
	if err := txC.SetInt(blk1, 0, 0, false); err != nil {
		if errors.Is(err, concurrency.ErrLockAbort) {
			_ = txC.Rollback()
		}
		return err
	}
	time.Sleep(1 * time.Second)
	if _, err := txC.GetInt(blk2, 0); err != nil {
		if errors.Is(err, concurrency.ErrLockAbort) {
			_ = txC.Rollback()
		}
		return err
	}
	return txC.Commit()
}
