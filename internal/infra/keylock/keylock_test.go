package keylock

import (
	"sync"
	"testing"
)

func TestMap_SerializesSameKey(t *testing.T) {
	t.Parallel()

	var (
		m       Map[string]
		wg      sync.WaitGroup
		counter int
	)

	const workers = 50

	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()

			unlock := m.Lock("user-1")
			defer unlock()

			v := counter
			v++
			counter = v
		}()
	}

	wg.Wait()

	if counter != workers {
		t.Fatalf("counter: want %d, got %d", workers, counter)
	}

	if m.Len() != 0 {
		t.Fatalf("entries left behind: want 0, got %d", m.Len())
	}
}

func TestMap_DistinctKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	var m Map[int]

	unlockA := m.Lock(1)
	defer unlockA()

	done := make(chan struct{})

	go func() {
		unlock := m.Lock(2)
		unlock()
		close(done)
	}()

	<-done
}

func TestMap_UnlockIsIdempotent(t *testing.T) {
	t.Parallel()

	var m Map[string]

	unlock := m.Lock("k")
	unlock()
	unlock()

	if m.Len() != 0 {
		t.Fatalf("want 0 entries, got %d", m.Len())
	}

	again := m.Lock("k")
	again()
}
