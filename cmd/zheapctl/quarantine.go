package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/zebraheap/heap"
)

var (
	quarantineSlabs  int
	quarantineRatio  float64
	quarantineBlocks int
)

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Walk blocks through the quarantine and report the evictions",
	Long: `quarantine allocates a batch of blocks and pushes each through the
quarantine with its synchronous trim, reporting every eviction. It then
fills the quarantine up to its ratio bound and drains it with Empty, so
both the push/pop pairing and the bulk drain are visible.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := heap.New(
			quarantineSlabs*heap.SlabSize(),
			heap.WithQuarantineRatio(quarantineRatio),
		)
		if err != nil {
			printError("%v\n", err)
			return err
		}
		defer h.Close()

		var evicted []heap.BlockInfo
		for i := 0; i < quarantineBlocks; i++ {
			_, info, err := h.AllocateBlock(int32(16+8*i), 8, 8)
			if err != nil {
				printError("allocate block %d: %v\n", i, err)
				return err
			}
			outcome, err := h.Push(info)
			if err != nil {
				printError("push block %d: %v\n", i, err)
				return err
			}
			switch outcome {
			case heap.Rejected:
				h.FreeBlock(info)
			case heap.SyncTrimRequired:
				if out, _, ok := h.Pop(); ok {
					evicted = append(evicted, out)
				}
			}
		}

		// Fill to the ratio bound, then drain in one go.
		for {
			_, info, err := h.AllocateBlock(32, 8, 8)
			if err != nil {
				break
			}
			outcome, err := h.Push(info)
			if err != nil || outcome == heap.Rejected {
				h.FreeBlock(info)
				break
			}
		}
		drained := h.Empty()

		if jsonOut {
			return printJSON(struct {
				Evicted []heap.BlockInfo
				Drained []heap.BlockInfo
				Stats   heap.Stats
			}{evicted, drained, h.Stats()})
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(os.Stdout, "pushed %d blocks through push/pop pairs:\n", quarantineBlocks)
		for _, e := range evicted {
			p.Fprintf(os.Stdout, "  evicted slab %d  header 0x%x  body size %d\n",
				e.SlabIndex, e.Header, e.BodySize)
		}
		p.Fprintf(os.Stdout, "filled to the ratio bound, then drained %d blocks with Empty\n", len(drained))
		s := h.Stats()
		p.Fprintf(os.Stdout, "final free %d, allocated %d, quarantined %d (bound %d)\n",
			s.FreeSlabs, s.AllocatedSlabs, s.QuarantinedSlabs, s.MaxQuarantinedSlabs)
		return nil
	},
}

func init() {
	quarantineCmd.Flags().IntVar(&quarantineSlabs, "slabs", 8, "number of slabs to reserve")
	quarantineCmd.Flags().Float64Var(&quarantineRatio, "ratio", 0.25, "quarantine ratio")
	quarantineCmd.Flags().IntVar(&quarantineBlocks, "blocks", 6, "blocks to push through the quarantine")
	rootCmd.AddCommand(quarantineCmd)
}
