package main

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tabapp/tabapp/internal/identity"
	"github.com/tabapp/tabapp/internal/session"
)

func withRuntime(opts *rootOptions, fn func(cmd *cobra.Command, rt *clientRuntime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd, opts)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd, rt, args)
	}
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Launch: probe biometrics and re-enter the persisted session",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *clientRuntime, _ []string) error {
			if err := rt.coord.Start(cmd.Context()); err != nil {
				return err
			}
			rt.printState()
			return nil
		}),
	}
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var login, password string
	var passwordFromStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Validate a login and password against the directory",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *clientRuntime, _ []string) error {
			if passwordFromStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if !rt.coord.CanSubmit(login, password) {
				return session.ErrSubmitDisabled
			}
			err := rt.coord.Submit(cmd.Context(), login, password)
			rt.printState()
			return err
		}),
	}
	cmd.Flags().StringVarP(&login, "login", "l", "", "login")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().BoolVar(&passwordFromStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newUnlockCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Sign in with biometrics as the persisted user",
		Long:  "Runs the launch flow and, when the silent attempt did not authenticate, offers an explicit biometric sign-in.",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *clientRuntime, _ []string) error {
			if err := rt.coord.Start(cmd.Context()); err != nil {
				return err
			}
			if rt.coord.State().IsAuthenticated() {
				rt.printState()
				return nil
			}
			err := rt.coord.Unlock(cmd.Context())
			var alert *session.AlertError
			if errors.As(err, &alert) {
				fmt.Fprintf(rt.out, "alert: %s\n", alert.Error())
			}
			rt.printState()
			return err
		}),
	}
}

func newGuestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "guest",
		Short: "Continue without signing in",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *clientRuntime, _ []string) error {
			if err := rt.coord.ContinueAsGuest(cmd.Context()); err != nil {
				return err
			}
			rt.printState()
			return nil
		}),
	}
}

func newSignOutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Re-enter the persisted session, then sign out of it",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *clientRuntime, _ []string) error {
			if err := rt.coord.Start(cmd.Context()); err != nil {
				return err
			}
			err := rt.coord.SignOut(cmd.Context())
			rt.printState()
			return err
		}),
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity persisted on this device",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *clientRuntime, _ []string) error {
			var rec identity.Record
			found, err := rt.store.Get(cmd.Context(), identity.PersistKey, &rec)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(rt.out, "nobody has signed in on this device")
				return nil
			}
			fmt.Fprintf(rt.out, "login: %s\ndisplay name: %s\n", rec.Login, rec.Name())
			return nil
		}),
	}
}

func newUsersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List directory users (debug)",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *clientRuntime, _ []string) error {
			users, err := rt.directory.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(users, func(i, j int) bool { return users[i].Login < users[j].Login })
			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LOGIN\tID\tNOTE")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Login, u.ID, u.Note)
			}
			return tw.Flush()
		}),
	}
}
