package main

import (
	"github.com/spf13/cobra"

	"github.com/paxgov/citizenry/internal/config"
	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/transport"
)

// immigrateCmd demonstrates a leader admitting a new member. Like
// enqueue, it stands up a fresh single-citizen republic first; wiring a
// second process to actually join is what run exercises end to end.
func immigrateCmd() *cobra.Command {
	var configPath string
	var newID string
	var cookie int64
	var props []string

	cmd := &cobra.Command{
		Use:   "immigrate",
		Short: "Bootstrap a single-citizen republic and admit one new member",
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
			if err := c.Bootstrap(0, nil); err != nil {
				return err
			}

			gov, err := c.Immigrate(government.ID(newID), cookie, properties)
			if err != nil {
				return err
			}
			if gov == nil {
				cmd.Println("immigration already pending, try again")
				return nil
			}
			c.Tick(1)

			snap := c.Snapshot()
			cmd.Printf("admitted %s: majority=%v constituents=%v\n",
				newID, snap.Government.Majority, snap.Government.Constituents)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the existing leader's YAML configuration")
	cmd.Flags().StringVar(&newID, "id", "", "id of the citizen to admit")
	cmd.Flags().Int64Var(&cookie, "cookie", 1, "immigration generation cookie for the new citizen")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "new citizen's property as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
