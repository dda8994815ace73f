package alloc_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/p-n-ai/pai-curator/internal/alloc"
	"pgregory.net/rapid"
)

func pool(name string, n int) alloc.Pool {
	p := alloc.Pool{Name: name}
	for i := 0; i < n; i++ {
		p.Items = append(p.Items, fmt.Sprintf("%s-%d", name, i))
	}
	return p
}

func TestNext_RoundRobin(t *testing.T) {
	a := alloc.New()
	p := pool("img", 3)

	want := []string{"img-0", "img-1", "img-2", "img-0", "img-1"}
	for i, w := range want {
		got, ok := a.Next(p)
		if !ok {
			t.Fatalf("Next() #%d ok = false", i)
		}
		if got != w {
			t.Errorf("Next() #%d = %q, want %q", i, got, w)
		}
	}
}

func TestNext_SkipsItemsUsedByOtherPools(t *testing.T) {
	a := alloc.New()
	shared := alloc.Pool{Name: "a", Items: []string{"x", "y"}}
	other := alloc.Pool{Name: "b", Items: []string{"x", "z"}}

	if got, _ := a.Next(shared); got != "x" {
		t.Fatalf("Next(a) = %q, want x", got)
	}
	if got, _ := a.Next(other); got != "z" {
		t.Errorf("Next(b) = %q, want z (x already used)", got)
	}
}

func TestNext_EmptyPool(t *testing.T) {
	a := alloc.New()
	if _, ok := a.Next(alloc.Pool{Name: "empty"}); ok {
		t.Error("Next(empty) ok = true, want false")
	}
	if got := a.PickDistinct(alloc.Pool{Name: "empty"}, nil, 3); got != nil {
		t.Errorf("PickDistinct(empty) = %v, want nil", got)
	}
}

func TestPickDistinct_ExcludesAndDedupes(t *testing.T) {
	a := alloc.New()
	p := pool("img", 4)

	main, _ := a.Next(p)
	got := a.PickDistinct(p, []string{main}, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	seen := map[string]bool{main: true}
	for _, g := range got {
		if seen[g] {
			t.Errorf("PickDistinct returned duplicate %q in %v (main %q)", g, got, main)
		}
		seen[g] = true
	}
}

func TestPickDistinct_TerminatesWhenCountExceedsPool(t *testing.T) {
	a := alloc.New()
	p := pool("img", 2)

	got := a.PickDistinct(p, []string{"img-0"}, 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if got[0] != "img-1" {
		t.Errorf("first pick = %q, want img-1", got[0])
	}
}

func TestAllocator_ConcurrentUse(t *testing.T) {
	a := alloc.New()
	p := pool("img", 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[string]int{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				item, _ := a.Next(p)
				mu.Lock()
				seen[item]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 100 {
		t.Errorf("distinct items = %d, want 100", len(seen))
	}
	if a.Used() != 100 {
		t.Errorf("Used() = %d, want 100", a.Used())
	}
}

// Property: PickDistinct(pool, [], k) with k <= |pool| yields k pairwise
// distinct items drawn from the pool, whatever the allocator has handed out before.
func TestPickDistinct_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "poolSize")
		p := pool("p", n)
		k := rapid.IntRange(0, n).Draw(t, "k")
		warmup := rapid.IntRange(0, 3*n).Draw(t, "warmup")

		a := alloc.New()
		for i := 0; i < warmup; i++ {
			a.Next(p)
		}

		got := a.PickDistinct(p, nil, k)
		if len(got) != k {
			t.Fatalf("len = %d, want %d", len(got), k)
		}
		members := map[string]bool{}
		for _, it := range p.Items {
			members[it] = true
		}
		seen := map[string]bool{}
		for _, g := range got {
			if !members[g] {
				t.Fatalf("%q is not from the pool", g)
			}
			if seen[g] {
				t.Fatalf("duplicate %q in %v", g, got)
			}
			seen[g] = true
		}
	})
}

// Property: the first |pool| calls to Next on a fresh allocator return every item exactly once.
func TestNext_NoDuplicateUntilExhausted_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "poolSize")
		p := pool("p", n)
		a := alloc.New()

		seen := map[string]bool{}
		for i := 0; i < n; i++ {
			item, ok := a.Next(p)
			if !ok {
				t.Fatal("Next() ok = false on non-empty pool")
			}
			if seen[item] {
				t.Fatalf("item %q reused before pool exhausted", item)
			}
			seen[item] = true
		}
	})
}
