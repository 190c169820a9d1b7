package cartsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
)

// fakeCartServer records pushes and serves a configurable server-side cart.
type fakeCartServer struct {
	mu         sync.Mutex
	serverCart []domain.CartItem
	pushes     [][]domain.CartItem
	failPushes int
}

func (f *fakeCartServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cart", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{"items": f.serverCart})
		case http.MethodPost:
			if f.failPushes > 0 {
				f.failPushes--
				http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
				return
			}
			var payload struct {
				Items []domain.CartItem `json:"items"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, `{"error":"bad body"}`, http.StatusBadRequest)
				return
			}
			f.serverCart = payload.Items
			f.pushes = append(f.pushes, payload.Items)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "items": payload.Items})
		case http.MethodDelete:
			f.serverCart = nil
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "reset": true, "items": []domain.CartItem{}})
		}
	})
	return mux
}

func (f *fakeCartServer) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

func (f *fakeCartServer) lastPush() []domain.CartItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pushes) == 0 {
		return nil
	}
	return f.pushes[len(f.pushes)-1]
}

func newTestSyncer(t *testing.T, fake *fakeCartServer, debounce time.Duration) (*Store, *Syncer) {
	t.Helper()

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	store := NewStore(filepath.Join(t.TempDir(), "cart.json"))
	syncer := NewSyncer(store, client, debounce)
	t.Cleanup(syncer.Close)

	return store, syncer
}

func TestSyncer_LoginMergesServerAndLocal(t *testing.T) {
	shared := primitive.NewObjectID()
	serverOnly := primitive.NewObjectID()
	fake := &fakeCartServer{
		serverCart: []domain.CartItem{
			{ProductID: shared, Quantity: 1},
			{ProductID: serverOnly, Quantity: 1},
		},
	}
	store, syncer := newTestSyncer(t, fake, 20*time.Millisecond)

	// Items added anonymously, before login.
	store.AddItem(domain.CartItem{ProductID: shared, Quantity: 2})

	syncer.SetSession(context.Background(), SessionAuthenticated)

	byID := make(map[primitive.ObjectID]int)
	for _, item := range store.Items() {
		byID[item.ProductID] = item.Quantity
	}
	assert.Equal(t, 3, byID[shared], "quantities summed for the shared product")
	assert.Equal(t, 1, byID[serverOnly], "server-only item survives the merge")

	// The merged cart syncs back up through the debounced push.
	require.Eventually(t, func() bool {
		return fake.pushCount() >= 1
	}, time.Second, 10*time.Millisecond, "merged cart was never pushed")
	assert.Len(t, fake.lastPush(), 2)
}

func TestSyncer_LogoutClearsLocalStore(t *testing.T) {
	fake := &fakeCartServer{}
	store, syncer := newTestSyncer(t, fake, 20*time.Millisecond)

	syncer.SetSession(context.Background(), SessionAuthenticated)
	store.AddItem(domain.CartItem{ProductID: primitive.NewObjectID(), Quantity: 2})

	syncer.SetSession(context.Background(), SessionUnauthenticated)
	assert.Empty(t, store.Items())
}

func TestSyncer_DebounceCoalescesRapidChanges(t *testing.T) {
	fake := &fakeCartServer{}
	store, syncer := newTestSyncer(t, fake, 50*time.Millisecond)

	syncer.SetSession(context.Background(), SessionAuthenticated)

	for i := 0; i < 5; i++ {
		store.AddItem(domain.CartItem{ProductID: primitive.NewObjectID(), Quantity: 1})
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return fake.pushCount() >= 1
	}, time.Second, 10*time.Millisecond, "debounced push never fired")

	// Let any stray timer fire before counting.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, fake.pushCount(), "rapid changes should coalesce into one push")
	assert.Len(t, fake.lastPush(), 5)
}

func TestSyncer_UnauthenticatedChangesDoNotPush(t *testing.T) {
	fake := &fakeCartServer{}
	store, syncer := newTestSyncer(t, fake, 20*time.Millisecond)

	syncer.SetSession(context.Background(), SessionUnauthenticated)
	store.AddItem(domain.CartItem{ProductID: primitive.NewObjectID(), Quantity: 1})

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, fake.pushCount())
}

func TestSyncer_PushRetriesOnFailure(t *testing.T) {
	fake := &fakeCartServer{failPushes: 2}
	store, syncer := newTestSyncer(t, fake, 10*time.Millisecond)

	syncer.SetSession(context.Background(), SessionAuthenticated)
	store.AddItem(domain.CartItem{ProductID: primitive.NewObjectID(), Quantity: 1})

	require.Eventually(t, func() bool {
		return fake.pushCount() == 1
	}, 2*time.Second, 10*time.Millisecond, "push did not succeed after retries")
}

func TestSyncer_FlushPushesImmediately(t *testing.T) {
	fake := &fakeCartServer{}
	store, syncer := newTestSyncer(t, fake, time.Hour) // debounce would never fire

	syncer.SetSession(context.Background(), SessionAuthenticated)
	store.AddItem(domain.CartItem{ProductID: primitive.NewObjectID(), Quantity: 1})

	require.NoError(t, syncer.Flush(context.Background()))
	assert.Equal(t, 1, fake.pushCount())
}
