package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
	"github.com/dmitrymomot/jobengine/pkg/logger"
)

func queuesCmd() *cobra.Command {
	queues := &cobra.Command{
		Use:   "queues",
		Short: "Inspect queue definition files",
	}

	queues.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check that every queue in a definitions file can be created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := jobqueue.LoadQueueDefinitions(args[0])
			if err != nil {
				return err
			}

			// A throwaway manager applies the same validation as boot.
			created, err := jobqueue.New(jobqueue.WithLogger(logger.Discard())).CreateQueues(defs...)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tCONCURRENCY\tRATE LIMIT\tMAX ATTEMPTS\tDEAD LETTER")
			for _, q := range created {
				rate := "-"
				if q.RateLimit != nil {
					rate = fmt.Sprintf("%d/%s", q.RateLimit.Limit, q.RateLimit.Period)
				}
				dlq := q.DeadLetterQueue
				if dlq == "" {
					dlq = "-"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", q.Type, q.Concurrency, rate, q.DefaultMaxAttempts, dlq)
			}
			return w.Flush()
		},
	})

	return queues
}
