package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestUpstashStore(t *testing.T, handler http.HandlerFunc, opts ...StoreOption) *UpstashRedisStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]StoreOption{WithHTTPClient(server.Client())}, opts...)
	store, err := NewUpstashRedisStore(UpstashRedisConfig{URL: server.URL, Token: "token"}, opts...)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store
}

func TestUpstashRedisStoreKeys(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	if got, _ := store.runKey("abc"); got != "opsdesk:run:abc" {
		t.Fatalf("runKey() = %q", got)
	}
	if got, _ := store.userIndexKey("user_001"); got != "opsdesk:user:user_001:runs" {
		t.Fatalf("userIndexKey() = %q", got)
	}

	store = &UpstashRedisStore{keyPrefix: "custom:"}
	if got, _ := store.runKey("abc"); got != "custom:run:abc" {
		t.Fatalf("runKey() = %q", got)
	}

	if _, err := store.runKey("   "); !errors.Is(err, ErrInvalidRun) {
		t.Fatalf("runKey() error = %v, want ErrInvalidRun", err)
	}
	if _, err := store.userIndexKey(""); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("userIndexKey() error = %v, want ErrInvalidUserID", err)
	}
}

func TestNewUpstashRedisStoreValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRedisStore(UpstashRedisConfig{Token: "t"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "http://localhost"}); err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "http://localhost", Token: "t"}, WithTTL(-time.Second)); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}

func TestUpstashRedisStoreSavePipelinesSnapshotAndIndex(t *testing.T) {
	t.Parallel()

	var (
		gotPath     string
		gotAuth     string
		gotCommands [][]any
	)
	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotCommands); err != nil {
			t.Errorf("decode pipeline: %v", err)
		}
		fmt.Fprint(w, `[{"result":"OK"},{"result":3},{"result":"OK"},{"result":1}]`)
	}, WithTTL(90*time.Second), WithIndexLimit(10))

	st := NewPipelineState("run-1", "where is my order", "user_001", "demo", time.Now())
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if gotPath != "/pipeline" {
		t.Fatalf("path = %q, want /pipeline", gotPath)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(gotCommands) != 4 {
		t.Fatalf("unexpected pipeline: %#v", gotCommands)
	}

	set := gotCommands[0]
	if set[0] != "SET" || set[1] != "opsdesk:run:run-1" || set[3] != "EX" || set[4] != float64(90) {
		t.Fatalf("unexpected SET: %#v", set)
	}
	if push := gotCommands[1]; push[0] != "LPUSH" || push[1] != "opsdesk:user:user_001:runs" || push[2] != "run-1" {
		t.Fatalf("unexpected LPUSH: %#v", push)
	}
	if trim := gotCommands[2]; trim[0] != "LTRIM" || trim[3] != float64(9) {
		t.Fatalf("unexpected LTRIM: %#v", trim)
	}
	if exp := gotCommands[3]; exp[0] != "EXPIRE" || exp[2] != float64(90) {
		t.Fatalf("unexpected EXPIRE: %#v", exp)
	}
}

func TestUpstashRedisStoreSaveWithoutTTLSkipsExpiry(t *testing.T) {
	t.Parallel()

	var gotCommands [][]any
	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&gotCommands)
		fmt.Fprint(w, `[{"result":"OK"},{"result":1},{"result":"OK"}]`)
	})
	store.ttl = 0

	if err := store.Save(context.Background(), NewPipelineState("run-9", "q", "user_001", "", time.Now())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(gotCommands) != 3 || len(gotCommands[0]) != 3 {
		t.Fatalf("unexpected pipeline: %#v", gotCommands)
	}
}

func TestUpstashRedisStoreSaveReportsPipelineError(t *testing.T) {
	t.Parallel()

	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"result":"OK"},{"error":"WRONGTYPE"},{"result":"OK"},{"result":1}]`)
	})

	err := store.Save(context.Background(), NewPipelineState("run-1", "q", "user_001", "", time.Now()))
	if err == nil || err.Error() != "redis pipeline command 1 (LPUSH): WRONGTYPE" {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestUpstashRedisStoreSaveRejectsInvalidState(t *testing.T) {
	t.Parallel()

	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	if err := store.Save(context.Background(), nil); !errors.Is(err, ErrNilState) {
		t.Fatalf("Save(nil) error = %v, want ErrNilState", err)
	}
	st := NewPipelineState("", "q", "user_001", "", time.Now())
	if err := store.Save(context.Background(), st); !errors.Is(err, ErrInvalidRun) {
		t.Fatalf("Save() error = %v, want ErrInvalidRun", err)
	}
}

func TestUpstashRedisStoreLoadRoundTripsState(t *testing.T) {
	t.Parallel()

	seed := NewPipelineState("run-2", "refund please", "user_002", "refund_dryer", time.Now())
	seed.MarkStarted(StageRecords, time.Now())
	seed.Complete()
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	})

	st, err := store.Load(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.RunID != "run-2" || st.Scenario != "refund_dryer" || !st.Completed() {
		t.Fatalf("Load() = %+v", st)
	}
	if _, ok := st.StageStarted[StageRecords]; !ok {
		t.Fatal("expected records start time to survive round trip")
	}
	if gotCommand[0] != "GET" || gotCommand[1] != "opsdesk:run:run-2" {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}

func TestUpstashRedisStoreLoadNotFound(t *testing.T) {
	t.Parallel()

	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	})

	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
}

func TestUpstashRedisStoreRecentRunIDs(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&gotCommand)
		fmt.Fprint(w, `{"result":["run-3","run-2"]}`)
	}, WithIndexLimit(5), WithKeyPrefix("tenant:"))

	ids, err := store.RecentRunIDs(context.Background(), "user_001", 100)
	if err != nil {
		t.Fatalf("RecentRunIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "run-3" {
		t.Fatalf("ids = %v", ids)
	}
	if gotCommand[0] != "LRANGE" || gotCommand[1] != "tenant:user:user_001:runs" || gotCommand[3] != float64(4) {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}

func TestUpstashRedisStoreSurfacesRESTErrors(t *testing.T) {
	t.Parallel()

	store := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"WRONGPASS invalid token"}`)
	})
	if err := store.Delete(context.Background(), "run-3"); err == nil || err.Error() != "WRONGPASS invalid token" {
		t.Fatalf("Delete() error = %v", err)
	}

	failing := newTestUpstashStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if err := failing.Delete(context.Background(), "run-3"); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}
