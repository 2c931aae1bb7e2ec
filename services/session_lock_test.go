package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionLocks(t *testing.T) {
	locks := newSessionLocks()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("s-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size())

	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	assert.Equal(t, 2, locks.size())
	unlockA()
	unlockB()
	assert.Equal(t, 0, locks.size())
}
