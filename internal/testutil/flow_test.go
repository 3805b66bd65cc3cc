package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_Sequence(t *testing.T) {
	g := NewFixedIDGenerator("audit")
	assert.Equal(t, "audit-1", g.Generate())
	assert.Equal(t, "audit-2", g.Generate())
}

func TestFixedIDGenerator_DefaultPrefix(t *testing.T) {
	g := NewFixedIDGenerator("")
	assert.Equal(t, "test-id-1", g.Generate())
}

func TestFixedIDGenerator_UniqueUnderConcurrency(t *testing.T) {
	g := NewFixedIDGenerator("x")
	const n = 100

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			id := g.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
