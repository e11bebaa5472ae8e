package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/goliatone/go-auth-client"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func credentialFlags(cmd *cobra.Command, creds *authclient.Credentials) {
	cmd.Flags().StringVarP(&creds.Identity, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&creds.Secret, "password", "p", "", `account password, "-" reads it from stdin`)
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func readSecret(cmd *cobra.Command, secret string) (string, error) {
	if secret != "-" {
		return secret, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "read password from stdin")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCommand() *cobra.Command {
	var creds authclient.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)

			ok, err := visit(cmd, a.cfg.Client.LoginRoute)
			if err != nil || !ok {
				return err
			}

			if creds.Secret, err = readSecret(cmd, creds.Secret); err != nil {
				return err
			}

			result := a.store.Login(cmd.Context(), creds)
			printJSON(cmd.OutOrStdout(), result)
			return resultError(result)
		},
	}
	credentialFlags(cmd, &creds)
	return cmd
}

func newRegisterCommand() *cobra.Command {
	var creds authclient.Credentials

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)

			ok, err := visit(cmd, "Register")
			if err != nil || !ok {
				return err
			}

			if creds.Secret, err = readSecret(cmd, creds.Secret); err != nil {
				return err
			}

			strength := authclient.MeasurePassword(creds.Secret)
			fmt.Fprintf(cmd.ErrOrStderr(), "password strength: %s (%d/100)\n", strength.Label, strength.Score)

			result := a.store.Register(cmd.Context(), creds)
			printJSON(cmd.OutOrStdout(), result)
			return resultError(result)
		},
	}
	credentialFlags(cmd, &creds)
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session, locally even if the server is unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)
			a.store.Logout(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "logged out, at %s\n", a.router.Current().Path)
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local session, optionally checking it with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)

			out := map[string]any{
				"authenticated": a.store.IsAuthenticated(),
				"session":       a.store.Snapshot(),
			}

			if verify && a.store.IsAuthenticated() {
				out["server"] = a.store.Verify(cmd.Context())
				out["authenticated"] = a.store.IsAuthenticated()
			}

			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "call GET /status")
	return cmd
}

func newDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show revenue totals and the chart series",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)

			ok, err := visit(cmd, "Dashboard")
			if err != nil || !ok {
				return err
			}

			summary, err := authclient.Authorized(cmd.Context(), a.store, a.client.GetDashboardSummary)
			if err != nil {
				return err
			}
			chart, err := authclient.Authorized(cmd.Context(), a.store, a.client.GetChartData)
			if err != nil {
				return err
			}

			printJSON(cmd.OutOrStdout(), map[string]any{
				"summary": summary,
				"chart":   chart,
			})
			return nil
		},
	}
}

func newPaymentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "payments",
		Short: "List payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)

			ok, err := visit(cmd, "Payments")
			if err != nil || !ok {
				return err
			}

			payments, err := authclient.Authorized(cmd.Context(), a.store, a.client.GetPayments)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), payments)
			return nil
		},
	}
}

func newProfileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the logged in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)

			ok, err := visit(cmd, "Profile")
			if err != nil || !ok {
				return err
			}

			s := a.store.Snapshot()
			printJSON(cmd.OutOrStdout(), map[string]any{
				"email": s.Identity,
				"mode":  s.Mode,
			})
			return nil
		},
	}
}

func newPasswordCommand() *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)

			ok, err := visit(cmd, "Profile")
			if err != nil || !ok {
				return err
			}

			result := a.store.ChangePassword(cmd.Context(), current, next)
			printJSON(cmd.OutOrStdout(), result)
			return resultError(result)
		},
	}
	cmd.Flags().StringVar(&current, "old", "", "current password")
	cmd.Flags().StringVar(&next, "new", "", "new password")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func newOpenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open <route>",
		Short: "Navigate to a route name or path and print where the guard sends you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)

			loc, err := a.router.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), loc)
			return nil
		},
	}
}

func newRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromCommand(cmd)

			w := cmd.OutOrStdout()
			for _, r := range a.routes.Routes() {
				name := r.Name
				if name == "" {
					name = "-"
				}
				target := ""
				if r.Redirect != "" {
					target = " -> " + r.Redirect
				}
				fmt.Fprintf(w, "%-10s %-16s %s%s\n", name, r.Path, r.Access, target)
			}
			return nil
		},
	}
}
