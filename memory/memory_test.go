package memory

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// slowBackend trava as leituras de stuck até release fechar; o resto responde na hora.
type slowBackend struct {
	release chan struct{}
	stuck   uintptr
}

func (s *slowBackend) ReadAt(addr uintptr, buf []byte) (int, error) {
	if s.stuck == 0 || addr == s.stuck {
		<-s.release
	}
	return len(buf), nil
}

func (s *slowBackend) Close() error { return nil }

func TestReaderRead(t *testing.T) {
	fake := NewFake()
	fake.Map(0x1000, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	r := NewReader(fake, 0)
	region := Region{Name: "slot", Base: 0x1000, Size: 8}

	t.Run("reads inside region", func(t *testing.T) {
		got, err := r.Read(region, 2, 4)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if diff := cmp.Diff([]byte{3, 4, 5, 6}, got); diff != "" {
			t.Fatalf("bytes mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("out of bounds never reaches backend", func(t *testing.T) {
		before := fake.Reads()
		for _, tc := range []struct{ off, n int }{{6, 4}, {0, 9}, {-1, 2}, {8, 1}} {
			_, err := r.Read(region, tc.off, tc.n)
			if !errors.Is(err, ErrOutOfBounds) {
				t.Fatalf("offset %d len %d: expected ErrOutOfBounds, got %v", tc.off, tc.n, err)
			}
		}
		if fake.Reads() != before {
			t.Fatalf("expected no backend reads, got %d", fake.Reads()-before)
		}
	})

	t.Run("short segment is a partial read", func(t *testing.T) {
		wide := Region{Name: "wide", Base: 0x1000, Size: 16}
		_, err := r.Read(wide, 0, 16)
		if !errors.Is(err, ErrPartialRead) {
			t.Fatalf("expected ErrPartialRead, got %v", err)
		}
		if !IsTransient(err) {
			t.Fatalf("expected partial read to be transient")
		}
	})

	t.Run("unmapped address is a partial read", func(t *testing.T) {
		_, err := r.Read(Region{Name: "nowhere", Base: 0x9000, Size: 4}, 0, 4)
		if !errors.Is(err, ErrPartialRead) {
			t.Fatalf("expected ErrPartialRead, got %v", err)
		}
	})
}

func TestReaderAccessDenied(t *testing.T) {
	fake := NewFake()
	fake.Map(0x1000, make([]byte, 4))
	r := NewReader(fake, 0)
	region := Region{Name: "slot", Base: 0x1000, Size: 4}

	fake.Exit()
	_, err := r.Read(region, 0, 4)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if IsTransient(err) {
		t.Fatalf("access denied must not be transient")
	}

	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := r.Read(region, 0, 4); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied after close, got %v", err)
	}
}

func TestReaderTimeout(t *testing.T) {
	slow := &slowBackend{release: make(chan struct{})}
	r := NewReader(slow, 10*time.Millisecond)
	region := Region{Name: "slow", Base: 0x1000, Size: 4}

	_, err := r.Read(region, 0, 4)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	_, err = r.Read(region, 0, 4)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected in-flight read to fail fast, got %v", err)
	}

	close(slow.release)
	deadline := time.Now().Add(time.Second)
	for r.busy() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, err := r.Read(region, 0, 4); err != nil {
		t.Fatalf("expected read to succeed after release, got %v", err)
	}
}

func TestReaderTimeoutIsPerRegion(t *testing.T) {
	slow := &slowBackend{release: make(chan struct{}), stuck: 0x1000}
	r := NewReader(slow, 10*time.Millisecond)
	stuck := Region{Name: "A", Base: 0x1000, Size: 4}
	other := Region{Name: "B", Base: 0x2000, Size: 4}
	defer close(slow.release)

	if _, err := r.Read(stuck, 0, 4); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	t.Run("other region still reads", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if _, err := r.Read(other, 0, 4); err != nil {
				t.Fatalf("read %d of B: expected no error, got %v", i, err)
			}
		}
	})

	t.Run("stuck region fails fast and is named", func(t *testing.T) {
		_, err := r.Read(stuck, 0, 4)
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
		if !strings.Contains(err.Error(), "A@0x1000") {
			t.Fatalf("expected error to name region A, got %v", err)
		}
	})
}

func TestReadPointer(t *testing.T) {
	fake := NewFake()
	fake.Map(0x400000, []byte{0x00, 0x20, 0x5A, 0x01, 0, 0, 0, 0})
	r := NewReader(fake, 0)

	p, err := r.ReadPointer(0x400000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p != 0x015A2000 {
		t.Fatalf("expected 0x015A2000, got 0x%X", p)
	}

	if _, err := r.ReadPointer(0x400004); !errors.Is(err, ErrPartialRead) {
		t.Fatalf("expected null pointer to be a partial read, got %v", err)
	}
}

func TestCaptureCopiesRegion(t *testing.T) {
	fake := NewFake()
	fake.Map(0x2000, []byte{9, 9, 9, 9})
	r := NewReader(fake, 0)
	region := Region{Name: "a", Base: 0x2000, Size: 4}

	snap, err := r.Capture(region, 7)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	fake.Write(0x2000, []byte{1})
	if snap.Bytes[0] != 9 || snap.Seq != 7 {
		t.Fatalf("snapshot must not change after capture: %+v", snap)
	}
}
