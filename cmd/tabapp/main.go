package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "tabapp: %v\n", err)
		return 1
	}
	return 0
}

type rootOptions struct {
	directoryURL string
	secureStore  string
	offlineSeed  string
	showMetrics  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tabapp",
		Short:         "Headless client for the tabapp session coordinator",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.directoryURL, "directory", "", "directory base URL (overrides DIRECTORY_URL)")
	root.PersistentFlags().StringVar(&opts.secureStore, "store", "", "secure store backend: file, redis or memory (overrides SECURE_STORE)")
	root.PersistentFlags().StringVar(&opts.offlineSeed, "offline-seed", "", "validate against an in-process directory seeded from this YAML file")
	root.PersistentFlags().BoolVar(&opts.showMetrics, "metrics", false, "print session counters before exiting")

	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newUnlockCmd(opts))
	root.AddCommand(newGuestCmd(opts))
	root.AddCommand(newSignOutCmd(opts))
	root.AddCommand(newWhoamiCmd(opts))
	root.AddCommand(newUsersCmd(opts))

	return root
}
