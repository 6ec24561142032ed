package main

import (
	"github.com/spf13/cobra"

	"github.com/paxgov/citizenry/internal/config"
	"github.com/paxgov/citizenry/internal/transport"
)

func bootstrapCmd() *cobra.Command {
	var configPath string
	var props []string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Install the genesis government for a single citizen",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(configPath)
			if err != nil {
				return err
			}
			properties, err := parseProperties(props)
			if err != nil {
				return err
			}

			net := transport.NewNetwork()
			c := newCitizen(f, net.NewClient(f.Citizen().Self), newLogger())
			if err := c.Bootstrap(0, properties); err != nil {
				return err
			}

			snap := c.Snapshot()
			cmd.Printf("bootstrapped %s: head=%s leader=%v majority=%v\n",
				snap.Self, snap.Head, snap.IsLeader, snap.Government.Majority)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the citizen's YAML configuration")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "citizen property as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
