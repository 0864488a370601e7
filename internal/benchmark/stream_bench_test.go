package benchmark

import (
	"context"
	"strings"
	"testing"

	"github.com/vnykmshr/streamflow/pkg/async/event"
	"github.com/vnykmshr/streamflow/pkg/async/execution"
	"github.com/vnykmshr/streamflow/pkg/streaming/buffer"
	"github.com/vnykmshr/streamflow/pkg/streaming/driver/memory"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

func ints(n int) []int {
	data := make([]int, n)
	for i := range data {
		data[i] = i
	}
	return data
}

// BenchmarkDrain measures collecting a whole stream with Drain.
func BenchmarkDrain(b *testing.B) {
	sizes := []int{100, 1000, 10000}

	for _, size := range sizes {
		data := ints(size)

		b.Run(sizeLabel(size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				r, _ := stream.NewSliceReadable[int](execution.Inline{}, memory.NewSource(data, 16))
				if _, err := r.Drain().Await(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkPipe measures moving a stream through a pipe on each context kind.
func BenchmarkPipe(b *testing.B) {
	contexts := []struct {
		name string
		new  func() (execution.Context, func())
	}{
		{"inline", func() (execution.Context, func()) { return execution.Inline{}, func() {} }},
		{"serial", func() (execution.Context, func()) {
			s := execution.NewSerial("bench")
			return s, func() { <-s.Close() }
		}},
	}
	data := ints(10000)

	for _, c := range contexts {
		b.Run(c.name, func(b *testing.B) {
			ectx, closeCtx := c.new()
			defer closeCtx()

			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				r, _ := stream.NewSliceReadable[int](ectx, memory.NewSource(data, 64))
				w, _ := stream.NewSliceWritable[int](ectx, memory.NewSink[int]())
				finished := event.Next(&w.Events().Finish)
				r.Pipe(w)
				r.Resume()
				if _, err := finished.Await(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkCork compares one write per chunk with corked batches.
func BenchmarkCork(b *testing.B) {
	chunk := buffer.NewSlice(ints(8)...)

	for _, batch := range []int{1, 16, 128} {
		b.Run(sizeLabel(batch), func(b *testing.B) {
			w, _ := stream.NewSliceWritable[int](execution.Inline{}, memory.NewSink[int]())
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if i%batch == 0 {
					w.Cork()
				}
				w.Write(chunk)
				if i%batch == batch-1 {
					w.Uncork()
				}
			}
			w.End()
		})
	}
}

// BenchmarkTextDrainTo measures rune-boundary splitting of text chunks.
func BenchmarkTextDrainTo(b *testing.B) {
	segment := strings.Repeat("héllo wörld ", 64)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		src := buffer.NewText(segment, segment, segment)
		dst := buffer.EmptyText()
		for src.Len() > 0 {
			src.DrainTo(dst, 100)
		}
	}
}

func sizeLabel(size int) string {
	switch {
	case size >= 10000:
		return "10k"
	case size >= 1000:
		return "1k"
	case size >= 100:
		return "100"
	case size >= 10:
		return "10"
	default:
		return "1"
	}
}
