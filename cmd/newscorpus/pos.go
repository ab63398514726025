package main

import (
	"fmt"

	"github.com/pevans/newscorpus/corpus"
	"github.com/pevans/newscorpus/metrics"
	"github.com/pevans/newscorpus/posfreq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newPOSCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pos",
		Short: "Count part-of-speech tags in the tagged corpus",
		Long: `pos reads the tagged text of every article in the corpus, stores the
part-of-speech counts in its metadata and draws them as a bar chart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			registry := prometheus.NewRegistry()
			store := corpus.New(a.settings.AssetsPath)
			p := posfreq.New(store, a.logger.Named("posfreq"), metrics.New(registry))
			if err := p.Run(cmd.Context()); err != nil {
				return err
			}
			a.writeMetrics(registry)

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Counted tags for corpus %s\n", store.Dir())
			return nil
		},
	}
}
