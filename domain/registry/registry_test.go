package registry

import (
	"context"
	"testing"

	"github.com/edgecache/edgecache/domain/engine"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/rs/zerolog"
)

func newTestRegistry(store PersistentStore) (*Registry, *engine.Engine) {
	e := engine.New(engine.DefaultConfig(), events.New())
	r := New(Config{PodID: "pod-1", Region: "us-east", Endpoint: "pod-1:9000"}, e, store, zerolog.Nop())
	return r, e
}

type fakeStore struct {
	defs map[string]WorkerDefinition
	hits int
}

func newFakeStore() *fakeStore { return &fakeStore{defs: make(map[string]WorkerDefinition)} }

func (f *fakeStore) Get(ctx context.Context, workerID string) (*WorkerDefinition, error) {
	f.hits++
	if d, ok := f.defs[workerID]; ok {
		return &d, nil
	}
	return nil, nil
}

func (f *fakeStore) GetByCID(ctx context.Context, cid string) (*WorkerDefinition, error) {
	for _, d := range f.defs {
		if d.CodeCID == cid {
			return &d, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListActive(ctx context.Context) ([]WorkerDefinition, error) {
	out := make([]WorkerDefinition, 0, len(f.defs))
	for _, d := range f.defs {
		out = append(out, d)
	}
	return out, nil
}

func TestGetWorkerHitsLocalTierFirst(t *testing.T) {
	r, _ := newTestRegistry(nil)
	r.RegisterLocalWorker(WorkerDefinition{WorkerID: "w1", CodeCID: "cid1"})

	result, err := r.GetWorker(context.Background(), "w1")
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if result.Source != SourceMemory || result.ColdStart {
		t.Fatalf("expected a warm memory hit, got %+v", result)
	}
}

func TestGetWorkerFallsBackToCacheTier(t *testing.T) {
	r, e := newTestRegistry(nil)
	def := WorkerDefinition{WorkerID: "w2", CodeCID: "cid2"}
	if err := setJSON(e, Namespace, metaKey("w2"), def, metaTTL); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	result, err := r.GetWorker(context.Background(), "w2")
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if result.Source != SourceCache || !result.ColdStart {
		t.Fatalf("expected a cold cache hit, got %+v", result)
	}
	if result.Definition.WorkerID != "w2" {
		t.Fatalf("unexpected definition: %+v", result.Definition)
	}

	// Second lookup should now be served locally.
	second, err := r.GetWorker(context.Background(), "w2")
	if err != nil {
		t.Fatalf("GetWorker second: %v", err)
	}
	if second.Source != SourceMemory {
		t.Fatalf("expected the cache hit to populate the local tier, got %+v", second)
	}
}

func TestGetWorkerFallsBackToPersistentStoreWithRetry(t *testing.T) {
	store := newFakeStore()
	store.defs["w3"] = WorkerDefinition{WorkerID: "w3", CodeCID: "cid3"}
	r, _ := newTestRegistry(store)

	result, err := r.GetWorker(context.Background(), "w3")
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if result.Source != SourcePersistent || !result.ColdStart {
		t.Fatalf("expected a persistent-store hit, got %+v", result)
	}
	if store.hits == 0 {
		t.Fatal("expected the persistent store to be consulted")
	}
}

func TestGetWorkerMissWhenNoTierHasIt(t *testing.T) {
	r, _ := newTestRegistry(newFakeStore())

	result, err := r.GetWorker(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if result.Source != SourceMiss || result.Definition != nil {
		t.Fatalf("expected a miss, got %+v", result)
	}
}

func TestFindWarmPodsFiltersStaleAndSortsByRegionThenLoad(t *testing.T) {
	r, e := newTestRegistry(nil)
	now := nowMs()
	entry := LocationEntry{
		WorkerID: "w4",
		WarmPods: []PodStanza{
			{PodID: "stale", Region: "us-east", LastHeartbeat: now - 120000, ActiveInvocations: 0},
			{PodID: "busy-east", Region: "us-east", LastHeartbeat: now, ActiveInvocations: 10},
			{PodID: "idle-east", Region: "us-east", LastHeartbeat: now, ActiveInvocations: 1},
			{PodID: "idle-west", Region: "us-west", LastHeartbeat: now, ActiveInvocations: 0},
		},
	}
	if err := setJSON(e, Namespace, locationKey("w4"), entry, locationTTL); err != nil {
		t.Fatalf("seed location: %v", err)
	}

	pods, err := r.FindWarmPods("w4", "us-east")
	if err != nil {
		t.Fatalf("FindWarmPods: %v", err)
	}
	if len(pods) != 3 {
		t.Fatalf("expected 3 live pods (stale excluded), got %d: %+v", len(pods), pods)
	}
	if pods[0].PodID != "idle-east" || pods[1].PodID != "busy-east" {
		t.Fatalf("expected same-region-first then ascending load, got order %+v", pods)
	}
	if pods[2].PodID != "idle-west" {
		t.Fatalf("expected the other-region pod last, got %+v", pods)
	}
}

func TestHeartbeatTickPublishesAndRefreshesOwnedWorkerLocations(t *testing.T) {
	r, e := newTestRegistry(nil)
	r.RegisterLocalWorker(WorkerDefinition{WorkerID: "w5", CodeCID: "cid5"})

	r.heartbeatTick(context.Background())

	var hb heartbeatRecord
	found, err := getJSON(e, Namespace, heartbeatKey("pod-1"), &hb)
	if err != nil || !found {
		t.Fatalf("expected a published heartbeat, found=%v err=%v", found, err)
	}
	if hb.PodID != "pod-1" || hb.WorkerCount != 1 {
		t.Fatalf("unexpected heartbeat: %+v", hb)
	}

	var loc LocationEntry
	found, err = getJSON(e, Namespace, locationKey("w5"), &loc)
	if err != nil || !found {
		t.Fatalf("expected a location entry for the owned worker, found=%v err=%v", found, err)
	}
	if len(loc.WarmPods) != 1 || loc.WarmPods[0].PodID != "pod-1" {
		t.Fatalf("unexpected warm pods: %+v", loc.WarmPods)
	}
}

func TestAliveReflectsHeartbeatPresence(t *testing.T) {
	r, _ := newTestRegistry(nil)
	if r.Alive() {
		t.Fatal("expected Alive() to be false before any heartbeat has been published")
	}

	r.heartbeatTick(context.Background())

	if !r.Alive() {
		t.Fatal("expected Alive() to be true once a heartbeat has been published")
	}
}

func TestSetActiveInvocationsFeedsNextLocationRefresh(t *testing.T) {
	r, _ := newTestRegistry(nil)
	r.RegisterLocalWorker(WorkerDefinition{WorkerID: "w6"})
	r.SetActiveInvocations("w6", 7)

	r.refreshLocation("w6")

	pods, err := r.FindWarmPods("w6", "")
	if err != nil {
		t.Fatalf("FindWarmPods: %v", err)
	}
	if len(pods) != 1 || pods[0].ActiveInvocations != 7 {
		t.Fatalf("expected the reported invocation count to surface, got %+v", pods)
	}
}

func TestResyncTickAdoptsUnknownActiveWorkers(t *testing.T) {
	store := newFakeStore()
	store.defs["w7"] = WorkerDefinition{WorkerID: "w7", CodeCID: "cid7"}
	r, _ := newTestRegistry(store)

	r.resyncTick(context.Background())

	result, err := r.GetWorker(context.Background(), "w7")
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if result.Source != SourceMemory {
		t.Fatalf("expected resync to populate the local tier, got %+v", result)
	}
}
