package main

import (
	"log/slog"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/zebraheap/heap"
	"github.com/joshuapare/zebraheap/internal/logging"
	"github.com/joshuapare/zebraheap/notify"
)

var (
	demoSlabs int
	demoRatio float64
	demoOps   int
	demoSeed  int64
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run randomized allocate/free/quarantine traffic against a heap",
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logging.Init(logging.Options{Writer: os.Stderr, Level: slog.LevelDebug})
		}

		counters := notify.NewCounters()
		h, err := heap.New(
			demoSlabs*heap.SlabSize(),
			heap.WithQuarantineRatio(demoRatio),
			heap.WithNotifier(counters),
		)
		if err != nil {
			printError("%v\n", err)
			return err
		}
		defer h.Close()

		rng := rand.New(rand.NewSource(demoSeed))
		var live []heap.BlockInfo

		for i := 0; i < demoOps; i++ {
			switch {
			case len(live) == 0 || rng.Intn(2) == 0:
				bodySize := int32(rng.Intn(64))
				_, info, err := h.AllocateBlock(bodySize, 8, 8)
				if err == nil {
					live = append(live, info)
				}
			default:
				idx := rng.Intn(len(live))
				info := live[idx]
				live = append(live[:idx], live[idx+1:]...)
				outcome, err := h.Push(info)
				if err != nil {
					printError("%v\n", err)
					continue
				}
				switch outcome {
				case heap.Rejected:
					h.FreeBlock(info)
				case heap.SyncTrimRequired:
					h.Pop()
				}
			}
		}

		s := h.Stats()
		if jsonOut {
			return printJSON(s)
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(os.Stdout, "ran %d operations\n", demoOps)
		p.Fprintf(os.Stdout, "final free:        %d\n", s.FreeSlabs)
		p.Fprintf(os.Stdout, "final allocated:   %d\n", s.AllocatedSlabs)
		p.Fprintf(os.Stdout, "final quarantined: %d\n", s.QuarantinedSlabs)
		p.Fprintf(os.Stdout, "allocations:       %d\n", s.Allocations)
		p.Fprintf(os.Stdout, "frees:             %d\n", s.Frees)
		p.Fprintf(os.Stdout, "quarantine pushes: %d\n", s.QuarantinePushes)
		p.Fprintf(os.Stdout, "out of capacity:   %d\n", s.OutOfCapacity)

		snap := counters.Snapshot()
		p.Fprintf(os.Stdout, "notifier reservations: %d (%d bytes)\n", snap.Reservations, snap.ReservedBytes)
		p.Fprintf(os.Stdout, "notifier internal use: %d\n", snap.InternalUses)
		return nil
	},
}

func init() {
	demoCmd.Flags().IntVar(&demoSlabs, "slabs", 32, "number of slabs to reserve")
	demoCmd.Flags().Float64Var(&demoRatio, "ratio", 0.25, "quarantine ratio")
	demoCmd.Flags().IntVar(&demoOps, "ops", 500, "number of operations to run")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 1, "PRNG seed for reproducible runs")
	rootCmd.AddCommand(demoCmd)
}
