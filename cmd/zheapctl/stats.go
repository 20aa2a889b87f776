package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/zebraheap/heap"
)

var statsSlabs int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Construct a heap and report its initial slab/quarantine layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := heap.New(statsSlabs * heap.SlabSize())
		if err != nil {
			printError("%v\n", err)
			return err
		}
		defer h.Close()

		s := h.Stats()
		if jsonOut {
			return printJSON(s)
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(os.Stdout, "slabs:        %d\n", s.SlabCount)
		p.Fprintf(os.Stdout, "free:         %d\n", s.FreeSlabs)
		p.Fprintf(os.Stdout, "allocated:    %d\n", s.AllocatedSlabs)
		p.Fprintf(os.Stdout, "quarantined:  %d (max %d)\n", s.QuarantinedSlabs, s.MaxQuarantinedSlabs)
		p.Fprintf(os.Stdout, "slab size:    %d bytes\n", heap.SlabSize())
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsSlabs, "slabs", 8, "number of slabs to reserve")
	rootCmd.AddCommand(statsCmd)
}
