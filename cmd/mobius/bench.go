package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturn77/mobius-go/pkg/dispatch"
	"github.com/saturn77/mobius-go/pkg/reactive"
	"github.com/saturn77/mobius-go/pkg/signals"
)

func benchCmd() *cobra.Command {
	var (
		iterations int
		writers    int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure in-process runtime throughput",
		Long: `Run in-process benchmarks and print a text report.

Measures cell write/notify throughput, signal/slot dispatch
throughput, and async runtime round-trip latency.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(iterations, writers)
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", 100000, "Operations per benchmark")
	cmd.Flags().IntVarP(&writers, "writers", "w", 4, "Concurrent writers for the contention benchmark")

	return cmd
}

func runBench(iterations, writers int) error {
	fmt.Printf("mobius bench: %d iterations, %d writers\n\n", iterations, writers)

	benchCellWrites(iterations)
	benchCellContention(iterations, writers)
	benchSignalDispatch(iterations)
	benchRuntimeLatency(min(iterations, 10000))

	return nil
}

func benchCellWrites(n int) {
	cell := reactive.NewCell(0)
	defer cell.Close()

	var observed int
	done := make(chan struct{})
	sub := cell.OnChange(func() {
		observed++
		if observed == n {
			close(done)
		}
	})
	defer sub.Cancel()

	start := time.Now()
	for i := 0; i < n; i++ {
		cell.Set(i)
	}
	<-done
	elapsed := time.Since(start)

	report("cell write+notify", n, elapsed)
}

func benchCellContention(n, writers int) {
	cell := reactive.NewCell(0)
	defer cell.Close()

	perWriter := n / writers
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				cell.Update(func(v int) int { return v + 1 })
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	report(fmt.Sprintf("cell update, %d writers", writers), perWriter*writers, elapsed)
}

func benchSignalDispatch(n int) {
	sig, slot := signals.NewPair[int]()

	var handled int
	done := make(chan struct{})
	slot.Start(func(int) {
		handled++
		if handled == n {
			close(done)
		}
	})
	defer slot.Close()

	start := time.Now()
	for i := 0; i < n; i++ {
		sig.Send(i)
	}
	<-done
	elapsed := time.Since(start)

	report("signal send+handle", n, elapsed)
}

type benchEvent struct {
	sentAt time.Time
}

func (benchEvent) Route() string { return "bench" }

func benchRuntimeLatency(n int) {
	rt, handle, notices := dispatch.NewRuntime[benchEvent](
		dispatch.WithNoticeBuffer(2 * n),
	)

	latencies := make([]time.Duration, 0, n)
	done := make(chan struct{})
	rt.RegisterHandler("bench", func(_ context.Context, e benchEvent) {
		latencies = append(latencies, time.Since(e.sentAt))
		if len(latencies) == n {
			close(done)
		}
	})

	go rt.Run(context.Background())
	go func() {
		for range notices {
		}
	}()

	start := time.Now()
	for i := 0; i < n; i++ {
		handle.Send(benchEvent{sentAt: time.Now()})
	}
	<-done
	elapsed := time.Since(start)
	handle.Shutdown()

	report("runtime round-trip", n, elapsed)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	fmt.Printf("    latency p50=%v p99=%v max=%v\n",
		latencies[n/2].Round(time.Microsecond),
		latencies[n*99/100].Round(time.Microsecond),
		latencies[n-1].Round(time.Microsecond))
}

func report(name string, ops int, elapsed time.Duration) {
	rate := float64(ops) / elapsed.Seconds()
	fmt.Printf("  %-28s %10d ops in %8v  (%.0f ops/sec)\n",
		name, ops, elapsed.Round(time.Millisecond), rate)
}
