package main

import (
	"github.com/spf13/cobra"

	"github.com/paxgov/citizenry/internal/config"
	"github.com/paxgov/citizenry/internal/transport"
)

// enqueueCmd demonstrates a single leader accepting and committing one
// application entry. Since the core never persists across process
// invocations, this bootstraps a fresh, single-member republic first —
// a realistic multi-citizen enqueue is exercised by run instead.
func enqueueCmd() *cobra.Command {
	var configPath string
	var body string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Bootstrap a single-citizen republic and commit one entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(configPath)
			if err != nil {
				return err
			}

			net := transport.NewNetwork()
			c := newCitizen(f, net.NewClient(f.Citizen().Self), newLogger())
			if err := c.Bootstrap(0, nil); err != nil {
				return err
			}

			proposal, err := c.Enqueue([]byte(body))
			if err != nil {
				return err
			}
			c.Tick(1) // a singleton majority advances its own proposal locally

			snap := c.Snapshot()
			committed := snap.Head.Equal(proposal.Promise)
			cmd.Printf("enqueued %q at %s: committed=%v head=%s\n", body, proposal.Promise, committed, snap.Head)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the citizen's YAML configuration")
	cmd.Flags().StringVar(&body, "body", "", "entry payload to enqueue")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}
