package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/paxgov/citizenry/internal/citizen"
	"github.com/paxgov/citizenry/internal/config"
	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/metrics"
	"github.com/paxgov/citizenry/internal/transport"
)

// runCmd drives an in-process cluster: the first --config is
// bootstrapped as the genesis leader, every later one is immigrated in
// turn while the whole cluster is ticked forward, and each citizen's
// committed application entries are printed once the simulation ends.
func runCmd() *cobra.Command {
	var configPaths []string
	var bodies []string
	var ticks int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a simulated in-memory cluster for a number of ticks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(configPaths) == 0 {
				return errors.New("citizenctl: run needs at least one --config")
			}
			logger := newLogger()
			net := transport.NewNetwork()
			now := int64(0)

			type member struct {
				id  government.ID
				c   *citizen.Citizen
				reg *metrics.Registry
			}
			members := make([]member, 0, len(configPaths))
			for _, path := range configPaths {
				f, err := config.Load(path)
				if err != nil {
					return errors.Wrapf(err, "citizenctl: load %s", path)
				}
				cfg := f.Citizen()
				c := citizen.New(cfg, net.NewClient(cfg.Self), logger)
				reg := newMetrics(f)
				c.SetMetrics(reg)
				net.Register(cfg.Self, func(ctx context.Context, from government.ID, req transport.Request) *transport.Response {
					return c.Request(now, from, req)
				})
				members = append(members, member{id: cfg.Self, c: c, reg: reg})
			}

			leader := members[0].c
			if err := leader.Bootstrap(now, nil); err != nil {
				return err
			}

			for i, b := range bodies {
				if _, err := leader.Enqueue([]byte(b)); err != nil {
					return errors.Wrapf(err, "citizenctl: enqueue body %d", i)
				}
			}

			// Each government can only carry one pending membership change
			// at a time (the shaper's decided latch), so joiners are
			// admitted one at a time as earlier admissions commit, rather
			// than all up front.
			pending := members[1:]
			ctx := context.Background()
			for i := int64(0); i < ticks; i++ {
				now++
				if len(pending) > 0 {
					joiner := pending[0]
					if gov, err := leader.Immigrate(joiner.id, i+1, nil); err != nil {
						return errors.Wrapf(err, "citizenctl: immigrate %s", joiner.id)
					} else if gov != nil {
						pending = pending[1:]
					}
				}
				for _, m := range members {
					if err := m.c.Drive(ctx, now); err != nil {
						cmd.PrintErrf("tick %d: %s: %s\n", now, m.id, err)
					}
				}
			}

			for _, m := range members {
				snap := m.c.Snapshot()
				if snap.Government == nil {
					cmd.Printf("%s: never joined a government\n", m.id)
					continue
				}
				cmd.Printf("%s: head=%s leader=%v majority=%v constituents=%v\n",
					m.id, snap.Head, snap.IsLeader, snap.Government.Majority, snap.Government.Constituents)
				for _, e := range m.c.Entries() {
					if e.Kind == government.EntryKindEntry {
						cmd.Printf("  %s %q\n", e.Promise, e.Body)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&configPaths, "config", nil, "citizen YAML configuration (repeatable; first is the genesis leader)")
	cmd.Flags().StringArrayVar(&bodies, "body", nil, "entry payload the leader enqueues before driving (repeatable)")
	cmd.Flags().Int64Var(&ticks, "ticks", 20, "number of simulated ticks to drive")
	return cmd
}
