// Command citizenctl is the thin, client-facing wrapper around the
// replication core: the core itself never touches a config file, a
// clock, or a socket, so every piece of I/O the engine's user needs
// lives here instead.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paxgov/citizenry/internal/citizen"
)

func main() {
	defer recoverAssertion()

	root := &cobra.Command{
		Use:   "citizenctl",
		Short: "Drive a citizenry republic from the command line",
		Long: `citizenctl loads a citizen's YAML configuration, then either performs a
single lifecycle operation (bootstrap, enqueue, immigrate) against a
fresh citizen for demonstration purposes, or drives a simulated
in-process cluster of citizens over an in-memory transport (run).`,
	}

	root.AddCommand(bootstrapCmd(), enqueueCmd(), immigrateCmd(), runCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "citizenctl:", err)
		os.Exit(1)
	}
}

// recoverAssertion is the process boundary §7 calls for: a citizen
// never recovers from its own invariant violations, it panics with
// *citizen.AssertionError, and this is the only place that panic is
// caught — logged, then a fatal exit, never a resumed command. Any
// other panic is not ours to interpret and is re-raised.
func recoverAssertion() {
	r := recover()
	if r == nil {
		return
	}
	if ae, ok := r.(*citizen.AssertionError); ok {
		fmt.Fprintln(os.Stderr, "citizenctl: fatal:", ae)
		os.Exit(2)
	}
	panic(r)
}
