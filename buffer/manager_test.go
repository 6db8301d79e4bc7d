package buffer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/declanmoriarty/txstore/file"
	"github.com/declanmoriarty/txstore/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	fm      *file.Manager
	lm      *log.Manager
	bm      *Manager
	cleanup func()
}

// setupTest creates a new test environment with the specified buffer pool size.
func setupTest(t *testing.T, numBuffers int) *testEnv {
	t.Helper()
	dbDir, err := os.MkdirTemp("", "buffermgr_test")
	require.NoError(t, err)

	fm, err := file.NewManager(dbDir, 400)
	require.NoError(t, err)

	lm, err := log.NewManager(fm, "testlog")
	require.NoError(t, err)

	cleanup := func() { _ = os.RemoveAll(dbDir) }

	return &testEnv{
		fm:      fm,
		lm:      lm,
		bm:      NewManager(fm, lm, numBuffers),
		cleanup: cleanup,
	}
}

func createBlock(fileName string, blockNum int) *file.BlockId {
	return file.NewBlockId(fileName, blockNum)
}

func TestBufferManager(t *testing.T) {
	t.Run("basic pin and unpin", func(t *testing.T) {
		env := setupTest(t, 3)
		defer env.cleanup()

		blk := createBlock("testfile", 1)
		buff, err := env.bm.Pin(blk)
		require.NoError(t, err)
		assert.Equal(t, blk, buff.Block())

		env.bm.Unpin(buff)
		assert.Equal(t, 3, env.bm.Available())
	})

	t.Run("pool exhaustion", func(t *testing.T) {
		env := setupTest(t, 3)
		defer env.cleanup()

		blocks := make([]*Buffer, 3)
		for i := 0; i < 3; i++ {
			blk := createBlock("testfile", i+1)
			buff, err := env.bm.Pin(blk)
			require.NoError(t, err)
			assert.Equal(t, blk, buff.Block())
			blocks[i] = buff
		}
		assert.Equal(t, 0, env.bm.Available(), "no buffers should remain available")

		for _, buff := range blocks {
			env.bm.Unpin(buff)
		}
		assert.Equal(t, 3, env.bm.Available())
	})

	t.Run("buffer reuse after unpin", func(t *testing.T) {
		env := setupTest(t, 2)
		defer env.cleanup()

		blk1 := createBlock("testfile", 1)
		buff1, err := env.bm.Pin(blk1)
		require.NoError(t, err)

		blk2 := createBlock("testfile", 2)
		_, err = env.bm.Pin(blk2)
		require.NoError(t, err)

		env.bm.Unpin(buff1)

		blk3 := createBlock("testfile", 3)
		buff3, err := env.bm.Pin(blk3)
		require.NoError(t, err)
		assert.Same(t, buff1, buff3, "should reuse the unpinned buffer")
	})

	t.Run("same block returns same buffer", func(t *testing.T) {
		env := setupTest(t, 3)
		defer env.cleanup()

		blk := createBlock("testfile", 7)
		buff1, err := env.bm.Pin(blk)
		require.NoError(t, err)
		buff2, err := env.bm.Pin(blk)
		require.NoError(t, err)
		assert.Same(t, buff1, buff2)
		assert.Equal(t, 2, env.bm.Available())

		env.bm.Unpin(buff1)
		env.bm.Unpin(buff2)
	})
}

// TestBufferTimeout exercises pool exhaustion: a Pin request that cannot be
// satisfied within maxWaitTime fails with ErrBufferAbort, and a subsequent
// Pin succeeds once a buffer frees up.
func TestBufferTimeout(t *testing.T) {
	env := setupTest(t, 1)
	defer env.cleanup()

	blk1 := createBlock("testfile", 1)
	buff1, err := env.bm.Pin(blk1)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		blk2 := createBlock("testfile", 2)
		_, err := env.bm.Pin(blk2)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBufferAbort)
	case <-time.After(12 * time.Second):
		t.Fatal("timeout waiting for Pin to return error")
	}

	env.bm.Unpin(buff1)

	blk2 := createBlock("testfile", 2)
	buff2, err := env.bm.Pin(blk2)
	require.NoError(t, err, "should successfully pin once a buffer becomes available")
	assert.Equal(t, blk2, buff2.Block())

	env.bm.Unpin(buff2)
}

func TestConcurrentBufferAccess(t *testing.T) {
	env := setupTest(t, 2)
	defer env.cleanup()

	var wg sync.WaitGroup
	workDuration := 3 * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		blk1 := createBlock("testfile", 1)
		buff1, err := env.bm.Pin(blk1)
		require.NoError(t, err)
		time.Sleep(workDuration)
		env.bm.Unpin(buff1)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		blk2 := createBlock("testfile", 2)
		buff2, err := env.bm.Pin(blk2)
		require.NoError(t, err)
		time.Sleep(workDuration)
		env.bm.Unpin(buff2)
	}()

	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	blk3 := createBlock("testfile", 3)
	buff3, err := env.bm.Pin(blk3)
	require.NoError(t, err)

	waitDuration := time.Since(start)
	assert.GreaterOrEqual(t, waitDuration.Seconds(), 2.9,
		"expected to wait for a buffer to free up, waited %v", waitDuration)

	env.bm.Unpin(buff3)
	wg.Wait()

	assert.Equal(t, 2, env.bm.Available())
}

func TestFlushAll(t *testing.T) {
	env := setupTest(t, 3)
	defer env.cleanup()

	blk := createBlock("testfile", 1)
	buff, err := env.bm.Pin(blk)
	require.NoError(t, err)

	require.NoError(t, buff.contents.SetInt(0, 99))
	buff.SetModified(5, -1)

	require.NoError(t, env.bm.FlushAll(5))
	assert.Equal(t, int64(-1), buff.modifyingTxn())

	env.bm.Unpin(buff)
}
