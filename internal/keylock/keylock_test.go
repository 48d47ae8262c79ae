package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	kl := New()

	const writers = 32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kl.Lock("org:key")
			defer kl.Unlock("org:key")
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, writers, counter)
}

func TestKeyLockIndependentKeysDoNotBlock(t *testing.T) {
	kl := New()

	kl.Lock("a")
	done := make(chan struct{})
	go func() {
		kl.Lock("b")
		kl.Unlock("b")
		close(done)
	}()
	<-done
	kl.Unlock("a")
}

func TestKeyLockEntriesAreReclaimed(t *testing.T) {
	kl := New()

	kl.Lock("k")
	kl.Unlock("k")

	kl.mu.Lock()
	defer kl.mu.Unlock()
	assert.Empty(t, kl.locks)
}
