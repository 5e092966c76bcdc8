package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type failingPartition struct {
	Partition
	err error
}

func (f *failingPartition) Put(context.Context, string, *Response) error {
	return f.err
}

func TestParseWriteMode(t *testing.T) {
	tests := []struct {
		in      string
		want    WriteMode
		wantErr bool
	}{
		{in: "", want: WriteAwait},
		{in: "await", want: WriteAwait},
		{in: "Best-Effort", want: WriteBestEffort},
		{in: "background", want: WriteBestEffort},
		{in: "sometimes", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseWriteMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWriteMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseWriteMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriter_AwaitIsVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	p, _ := NewMemoryStorage().Open(ctx, "runtime")
	w := NewWriter(WriteAwait, nil)

	w.Put(ctx, p, "GET /a", testResponse("x"))

	if _, ok := p.Match(ctx, "GET /a"); !ok {
		t.Error("awaited write should be visible right after Put returns")
	}
}

func TestWriter_BestEffortVisibleAfterWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, _ := NewMemoryStorage().Open(context.Background(), "runtime")
	w := NewWriter(WriteBestEffort, nil)

	resp := testResponse("x")
	w.Put(ctx, p, "GET /a", resp)

	// Neither cancellation nor caller mutation may affect the pending write.
	cancel()
	resp.Body[0] = 'Z'
	w.Wait()

	got, ok := p.Match(context.Background(), "GET /a")
	if !ok {
		t.Fatal("best-effort write should land after Wait")
	}
	if string(got.Body) != "x" {
		t.Errorf("Body = %q, want x", got.Body)
	}
}

func TestWriter_ReportsErrors(t *testing.T) {
	quota := errors.New("quota")
	base, _ := NewMemoryStorage().Open(context.Background(), "runtime")
	p := &failingPartition{Partition: base, err: quota}

	for _, mode := range []WriteMode{WriteAwait, WriteBestEffort} {
		t.Run(mode.String(), func(t *testing.T) {
			var mu sync.Mutex
			var got []error
			w := NewWriter(mode, func(_ context.Context, partition, key string, err error) {
				mu.Lock()
				defer mu.Unlock()
				if partition != "runtime" || key != "GET /a" {
					t.Errorf("unexpected report %q %q", partition, key)
				}
				got = append(got, err)
			})

			w.Put(context.Background(), p, "GET /a", testResponse("x"))
			w.Put(context.Background(), p, "GET /a", nil)
			w.Wait()

			mu.Lock()
			defer mu.Unlock()
			if len(got) != 2 {
				t.Fatalf("reported %d errors, want 2", len(got))
			}
			if !errors.Is(got[0], quota) && !errors.Is(got[1], quota) {
				t.Errorf("quota error not reported: %v", got)
			}
		})
	}
}

type blockingPartition struct {
	Partition
	release chan struct{}
}

func (b *blockingPartition) Put(ctx context.Context, key string, resp *Response) error {
	<-b.release
	return b.Partition.Put(ctx, key, resp)
}

func TestWriter_PendingTracksBackgroundPuts(t *testing.T) {
	base, _ := NewMemoryStorage().Open(context.Background(), "runtime")
	p := &blockingPartition{Partition: base, release: make(chan struct{})}

	await := NewWriter(WriteAwait, nil)
	await.Put(context.Background(), base, "GET /a", testResponse("x"))
	if n := await.Pending(); n != 0 {
		t.Fatalf("await Pending() = %d, want 0", n)
	}

	w := NewWriter(WriteBestEffort, nil)
	w.Put(context.Background(), p, "GET /a", testResponse("x"))
	w.Put(context.Background(), p, "GET /b", testResponse("y"))
	if n := w.Pending(); n != 2 {
		t.Fatalf("Pending() = %d, want 2", n)
	}

	close(p.release)
	w.Wait()
	if n := w.Pending(); n != 0 {
		t.Errorf("Pending() after Wait = %d, want 0", n)
	}
}
