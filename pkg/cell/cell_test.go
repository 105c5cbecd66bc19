package cell

import (
	"sync"
	"testing"
	"time"
)

func TestEmptyCell(t *testing.T) {
	c := New[int]()

	if _, ok := c.Get(); ok {
		t.Error("Get() on empty cell should report ok=false")
	}
	if _, ok := c.LastWrite(); ok {
		t.Error("LastWrite() on empty cell should report ok=false")
	}
}

func TestPutOverwrites(t *testing.T) {
	c := New[string]()

	c.Put("first")
	c.Put("second")

	v, ok := c.Get()
	if !ok {
		t.Fatal("Get() should report ok=true after Put")
	}
	if v != "second" {
		t.Errorf("Get() = %q, want %q", v, "second")
	}
}

func TestLastWriteAdvances(t *testing.T) {
	c := New[int]()

	c.Put(1)
	first, ok := c.LastWrite()
	if !ok {
		t.Fatal("LastWrite() should report ok=true after Put")
	}

	time.Sleep(2 * time.Millisecond)
	c.Put(2)
	second, _ := c.LastWrite()

	if !second.After(first) {
		t.Errorf("LastWrite() after second Put = %v, want after %v", second, first)
	}
}

func TestClear(t *testing.T) {
	c := New[int]()
	c.Put(42)
	c.Clear()

	if _, ok := c.Get(); ok {
		t.Error("Get() after Clear should report ok=false")
	}

	// A cleared cell accepts new writes.
	c.Put(7)
	if v, ok := c.Get(); !ok || v != 7 {
		t.Errorf("Get() after Clear+Put = %v, %v; want 7, true", v, ok)
	}
}

// A reading must only ever observe a value that some Put call stored in
// full — never a torn combination of two writes.
func TestConcurrentReadersSeeWholeValues(t *testing.T) {
	type pair struct {
		a, b int
	}
	c := New[pair]()

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			c.Put(pair{a: i, b: -i})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if v, ok := c.Get(); ok && v.a != -v.b {
					t.Errorf("torn read: got %+v", v)
					return
				}
			}
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(done)
	wg.Wait()
}
