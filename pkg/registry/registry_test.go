package registry_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/brickingsoft/ringo/pkg/liburing"
	"github.com/brickingsoft/ringo/pkg/registry"
	"github.com/google/go-cmp/cmp"
)

func reserve(t *testing.T, r *registry.Registry, resource any) registry.Tag {
	t.Helper()
	tag, err := r.Reserve(registry.Reservation{Kind: registry.Kind(liburing.IORING_OP_NOP), Resource: resource})
	if err != nil {
		t.Fatal(err)
	}
	if err = r.MarkSubmitted(tag); err != nil {
		t.Fatal(err)
	}
	return tag
}

func TestTag(t *testing.T) {
	tag := registry.NewTag(7, 3)
	if tag.Index() != 7 || tag.Generation() != 3 {
		t.Error("unexpected tag parts", tag)
	}
	if registry.TagFromUserData(tag.UserData()) != tag {
		t.Error("user data round trip failed")
	}
	if tag.String() != "7@3" {
		t.Error(tag.String())
	}
}

func TestRegistry_Reserve(t *testing.T) {
	r := registry.New(2)
	first := reserve(t, r, nil)
	second := reserve(t, r, nil)
	if first == 0 || second == 0 {
		t.Error("tags must never be zero")
	}
	if first.Index() == second.Index() {
		t.Error("slots must be distinct")
	}
	if _, err := r.Reserve(registry.Reservation{}); !registry.IsRegistryFull(err) {
		t.Fatal("expected registry full, got", err)
	}
	if err := r.Complete(first, registry.Completion{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Reserve(registry.Reservation{}); !registry.IsRegistryFull(err) {
		t.Fatal("a completed but untaken slot is still live, got", err)
	}
	if _, err := r.Take(first); err != nil {
		t.Fatal(err)
	}
	third, err := r.Reserve(registry.Reservation{})
	if err != nil {
		t.Fatal(err)
	}
	if third.Index() != first.Index() || third.Generation() <= first.Generation() {
		t.Error("reused slot must carry a newer generation", first, third)
	}
}

func TestRegistry_OutOfOrder(t *testing.T) {
	r := registry.New(4)
	tags := make([]registry.Tag, 3)
	for i := range tags {
		tags[i] = reserve(t, r, i)
	}
	for _, i := range []int{2, 0, 1} {
		if err := r.Complete(tags[i], registry.Completion{Res: int32(i * 10)}); err != nil {
			t.Fatal(err)
		}
	}
	for i, tag := range tags {
		outcome, err := r.Take(tag)
		if err != nil {
			t.Fatal(err)
		}
		want := registry.Outcome{Completion: registry.Completion{Res: int32(i * 10)}, Resource: i, Final: true}
		if diff := cmp.Diff(want, outcome); diff != "" {
			t.Error(diff)
		}
	}
}

func TestRegistry_TakeTwice(t *testing.T) {
	r := registry.New(1)
	tag := reserve(t, r, nil)
	if _, err := r.Take(tag); !registry.IsStillPending(err) {
		t.Fatal("expected still pending, got", err)
	}
	if err := r.Complete(tag, registry.Completion{Res: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Take(tag); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Take(tag); !registry.IsStaleTag(err) {
		t.Fatal("expected stale tag, got", err)
	}
}

func TestRegistry_AbandonKeepsResource(t *testing.T) {
	r := registry.New(1)
	buf := make([]byte, 8)
	tag, err := r.Reserve(registry.Reservation{Resource: buf, Pins: []any{&buf[0]}})
	if err != nil {
		t.Fatal(err)
	}
	_ = r.MarkSubmitted(tag)
	freed, err := r.Abandon(tag)
	if err != nil || freed {
		t.Fatal("submitted slot must not be freed before its completion", freed, err)
	}
	if r.State(tag) != registry.Abandoned {
		t.Error("expected abandoned, got", r.State(tag))
	}
	if _, err = r.Reserve(registry.Reservation{}); !registry.IsRegistryFull(err) {
		t.Fatal("abandoned slot must stay occupied, got", err)
	}
	if err = r.Complete(tag, registry.Completion{Res: 8}); err != nil {
		t.Fatal(err)
	}
	if r.Live(tag) {
		t.Error("abandoned slot must be freed by its completion")
	}
	if diff := cmp.Diff(registry.Stats{Capacity: 1}, r.Stats()); diff != "" {
		t.Error(diff)
	}
}

func TestRegistry_AbandonUnsubmitted(t *testing.T) {
	r := registry.New(1)
	tag, _ := r.Reserve(registry.Reservation{})
	freed, err := r.Abandon(tag)
	if err != nil || !freed {
		t.Fatal("unsubmitted slot must be freed at once", freed, err)
	}
	if r.Live(tag) {
		t.Error("tag must be stale")
	}
}

func TestRegistry_AbandonCompleted(t *testing.T) {
	r := registry.New(1)
	tag := reserve(t, r, nil)
	_ = r.Complete(tag, registry.Completion{})
	freed, err := r.Abandon(tag)
	if err != nil || !freed {
		t.Fatal("completed slot must be freed at once", freed, err)
	}
}

func TestRegistry_StaleCompletion(t *testing.T) {
	r := registry.New(1)
	tag := reserve(t, r, nil)
	_ = r.Complete(tag, registry.Completion{})
	_, _ = r.Take(tag)
	next := reserve(t, r, nil)
	if err := r.Complete(tag, registry.Completion{}); !registry.IsProtocolViolation(err) {
		t.Fatal("stale completion must be a protocol violation, got", err)
	}
	if r.State(next) != registry.Pending {
		t.Error("new occupant must be untouched")
	}
}

func TestRegistry_DuplicateCompletion(t *testing.T) {
	r := registry.New(1)
	tag := reserve(t, r, nil)
	if err := r.Complete(tag, registry.Completion{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Complete(tag, registry.Completion{}); !registry.IsProtocolViolation(err) {
		t.Fatal("second completion must be a protocol violation, got", err)
	}
}

func TestRegistry_CompleteUnsubmitted(t *testing.T) {
	r := registry.New(1)
	tag, _ := r.Reserve(registry.Reservation{})
	if err := r.Complete(tag, registry.Completion{}); !registry.IsProtocolViolation(err) {
		t.Fatal("unsubmitted completion must be a protocol violation, got", err)
	}
}

func TestRegistry_Multishot(t *testing.T) {
	r := registry.New(1)
	tag := reserve(t, r, "accept")
	more := registry.Completion{Res: 5, Flags: liburing.IORING_CQE_F_MORE}
	_ = r.Complete(tag, more)
	_ = r.Complete(tag, more)

	for i := 0; i < 2; i++ {
		outcome, err := r.Take(tag)
		if err != nil {
			t.Fatal(err)
		}
		if outcome.Final || outcome.Res != 5 {
			t.Error("unexpected outcome", outcome)
		}
	}
	if r.State(tag) != registry.Pending {
		t.Fatal("drained multishot slot must wait again, got", r.State(tag))
	}
	_ = r.Complete(tag, registry.Completion{Res: -125})
	outcome, err := r.Take(tag)
	if err != nil || !outcome.Final {
		t.Fatal("expected final outcome", outcome, err)
	}
	if r.Live(tag) {
		t.Error("final completion must free the slot")
	}
}

func TestRegistry_AbandonMultishot(t *testing.T) {
	r := registry.New(1)
	tag := reserve(t, r, nil)
	_ = r.Complete(tag, registry.Completion{Flags: liburing.IORING_CQE_F_MORE})
	if freed, _ := r.Abandon(tag); freed {
		t.Fatal("producing multishot slot must stay until its final completion")
	}
	_ = r.Complete(tag, registry.Completion{Flags: liburing.IORING_CQE_F_MORE})
	if !r.Live(tag) {
		t.Fatal("non-final completion must not free")
	}
	_ = r.Complete(tag, registry.Completion{Res: -125})
	if r.Live(tag) {
		t.Error("final completion must free")
	}
}

func TestRegistry_Waker(t *testing.T) {
	r := registry.New(1)
	tag := reserve(t, r, nil)
	woken := 0
	ready, err := r.SetWaker(tag, func() {
		woken++
	})
	if err != nil || ready {
		t.Fatal(ready, err)
	}
	_ = r.Complete(tag, registry.Completion{})
	if woken != 1 {
		t.Error("waker must run exactly once, ran", woken)
	}
	if ready, _ = r.SetWaker(tag, func() {}); !ready {
		t.Error("completed slot must report ready")
	}
}

func TestRegistry_Detached(t *testing.T) {
	r := registry.New(1)
	tag, err := r.Reserve(registry.Reservation{Detached: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = r.Take(tag); !registry.IsStaleTag(err) {
		t.Error("detached slots cannot be taken, got", err)
	}
	_ = r.MarkSubmitted(tag)
	_ = r.Complete(tag, registry.Completion{})
	if r.Live(tag) {
		t.Error("detached slot must be freed by its completion")
	}
}

func TestRegistry_Fail(t *testing.T) {
	r := registry.New(1)
	tag, _ := r.Reserve(registry.Reservation{})
	if err := r.Fail(tag, -125); err != nil {
		t.Fatal(err)
	}
	outcome, err := r.Take(tag)
	if err != nil || outcome.Res != -125 {
		t.Fatal(outcome, err)
	}
}

func TestRegistry_ReleaseSubmitted(t *testing.T) {
	r := registry.New(1)
	tag := reserve(t, r, nil)
	if err := r.Release(tag); !registry.IsStillPending(err) {
		t.Fatal("submitted slot cannot be released, got", err)
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	r := registry.New(1)
	r.Shutdown()
	if _, err := r.Reserve(registry.Reservation{}); err == nil {
		t.Fatal("reserve after shutdown must fail")
	}
}

func TestRegistry_Interleavings(t *testing.T) {
	const capacity = 4
	for seed := uint64(1); seed <= 32; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		r := registry.New(capacity)
		model := map[registry.Tag]registry.State{}
		generations := map[uint32]uint32{}
		pick := func(states ...registry.State) (registry.Tag, bool) {
			var tags []registry.Tag
			for tag, state := range model {
				for _, want := range states {
					if state == want {
						tags = append(tags, tag)
					}
				}
			}
			if len(tags) == 0 {
				return 0, false
			}
			// map order is random, the seed alone must decide the pick
			slices.Sort(tags)
			return tags[rng.IntN(len(tags))], true
		}

		for step := 0; step < 400; step++ {
			switch rng.IntN(4) {
			case 0:
				tag, err := r.Reserve(registry.Reservation{Resource: step})
				if len(model) == capacity {
					if !registry.IsRegistryFull(err) {
						t.Fatal(seed, step, "expected registry full, got", err)
					}
					continue
				}
				if err != nil {
					t.Fatal(seed, step, err)
				}
				if last, ok := generations[tag.Index()]; ok && tag.Generation() <= last {
					t.Fatal(seed, step, "generation did not advance", last, tag)
				}
				generations[tag.Index()] = tag.Generation()
				_ = r.MarkSubmitted(tag)
				model[tag] = registry.Pending
			case 1:
				tag, ok := pick(registry.Pending, registry.Abandoned)
				if !ok {
					continue
				}
				if err := r.Complete(tag, registry.Completion{Res: 1}); err != nil {
					t.Fatal(seed, step, err)
				}
				if model[tag] == registry.Abandoned {
					if r.Live(tag) {
						t.Fatal(seed, step, "abandoned slot must be freed by its completion")
					}
					delete(model, tag)
					continue
				}
				model[tag] = registry.Completed
			case 2:
				tag, ok := pick(registry.Pending, registry.Completed)
				if !ok {
					continue
				}
				freed, err := r.Abandon(tag)
				if err != nil {
					t.Fatal(seed, step, err)
				}
				if freed != (model[tag] == registry.Completed) {
					t.Fatal(seed, step, "only a completed slot is freed on abandon", model[tag], freed)
				}
				if freed {
					delete(model, tag)
					continue
				}
				model[tag] = registry.Abandoned
			case 3:
				tag, ok := pick(registry.Completed)
				if !ok {
					continue
				}
				outcome, err := r.Take(tag)
				if err != nil || !outcome.Final {
					t.Fatal(seed, step, outcome, err)
				}
				delete(model, tag)
			}

			want := registry.Stats{Capacity: capacity, Live: len(model)}
			for tag, state := range model {
				if r.State(tag) != state {
					t.Fatal(seed, step, tag, "expected", state, "got", r.State(tag))
				}
				switch state {
				case registry.Pending:
					want.Pending++
				case registry.Completed:
					want.Completed++
				case registry.Abandoned:
					want.Abandoned++
				}
			}
			stats := r.Stats()
			if diff := cmp.Diff(want, stats); diff != "" {
				t.Fatal(seed, step, diff)
			}
			if stats.Pending+stats.Abandoned > stats.Capacity {
				t.Fatal(seed, step, "in-flight slots exceed capacity", stats)
			}
		}
	}
}
