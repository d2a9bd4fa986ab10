package trylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryLockAcquiresOnce(t *testing.T) {
	var m Mutex
	require.True(t, m.TryLock())
	require.False(t, m.TryLock(), "second TryLock must fail while held")
	m.Unlock()
	require.True(t, m.TryLock(), "TryLock succeeds again after Unlock")
}

func TestLockBlocksUntilUnlock(t *testing.T) {
	var m Mutex
	m.Lock()

	unlocked := make(chan struct{})
	go func() {
		m.Lock()
		close(unlocked)
	}()

	select {
	case <-unlocked:
		t.Fatal("second Lock must not succeed while held")
	default:
	}

	m.Unlock()
	<-unlocked
}

func TestMutexSerialisesConcurrentAccess(t *testing.T) {
	var m Mutex
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			counter++
			m.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 100, counter)
}
