package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/any2any-bot/types"
)

var (
	alice = types.Identity{UserID: 1, ChatID: 10}
	bob   = types.Identity{UserID: 2, ChatID: 20}
)

func TestPutReplacesPreviousSession(t *testing.T) {
	store := NewStore()

	_, replaced := store.Put(Session{Owner: alice, Flow: FlowMerge, State: StateAwaitingPdf})
	assert.False(t, replaced)

	prev, replaced := store.Put(Session{Owner: alice, Flow: FlowExtractPages, State: StateAwaitingPdf})
	require.True(t, replaced)
	assert.Equal(t, FlowMerge, prev.Flow)

	cur, ok := store.Get(alice.Key())
	require.True(t, ok)
	assert.Equal(t, FlowExtractPages, cur.Flow)
	assert.Equal(t, 1, store.Len())
}

func TestSessionsAreIsolatedPerIdentity(t *testing.T) {
	store := NewStore()
	store.Put(Session{Owner: alice, Flow: FlowMerge, State: StateAwaitingPdf})

	_, ok := store.Get(bob.Key())
	assert.False(t, ok)
	assert.False(t, store.Has(bob.Key()))

	store.Put(Session{Owner: bob, Flow: FlowTextToPdf, State: StateAwaitingText})
	cur, ok := store.Get(bob.Key())
	require.True(t, ok)
	require.True(t, store.CompareAndDelete(cur))

	cur, ok = store.Get(alice.Key())
	require.True(t, ok)
	assert.Equal(t, FlowMerge, cur.Flow)
	assert.Equal(t, 1, store.Len())
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	store := NewStore()
	store.Put(Session{Owner: alice, Flow: FlowMerge, State: StateAwaitingPdf})

	cur, _ := store.Get(alice.Key())
	cur.Files = append(cur.Files, &types.StoredFile{Name: "x.pdf"})

	again, _ := store.Get(alice.Key())
	assert.Empty(t, again.Files)
}

func TestCompareAndSwapDetectsStaleCopy(t *testing.T) {
	store := NewStore()
	store.Put(Session{Owner: alice, Flow: FlowMerge, State: StateAwaitingPdf})

	first, _ := store.Get(alice.Key())
	stale, _ := store.Get(alice.Key())

	next := first
	next.Files = []*types.StoredFile{{Name: "a.pdf"}}
	updated, err := store.CompareAndSwap(first, next)
	require.NoError(t, err)
	assert.Len(t, updated.Files, 1)

	_, err = store.CompareAndSwap(stale, stale)
	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, store.CompareAndDelete(stale))

	assert.True(t, store.CompareAndDelete(updated))
	assert.Equal(t, 0, store.Len())
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	store := NewStore()
	store.Put(Session{Owner: alice, Flow: FlowMerge, State: StateAwaitingPdf})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cur, _ := store.Get(alice.Key())
				next := cur
				next.Files = append(next.Files, &types.StoredFile{})
				if _, err := store.CompareAndSwap(cur, next); err == nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	cur, _ := store.Get(alice.Key())
	assert.Len(t, cur.Files, 50)
}

func TestIdleSince(t *testing.T) {
	store := NewStore()
	now := time.Now()
	store.Put(Session{Owner: alice, TouchedAt: now.Add(-time.Hour)})
	store.Put(Session{Owner: bob, TouchedAt: now})

	idle := store.IdleSince(now.Add(-time.Minute))
	assert.Equal(t, []types.Identity{alice}, idle)

	drained := store.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, store.Len())
}
