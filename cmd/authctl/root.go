package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/config"
	"github.com/goliatone/go-print"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type appKey struct{}

func fromCommand(cmd *cobra.Command) *app {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(appKey{}).(*app)
	return a
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Session aware client for the payments dashboard API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(
				config.WithFile(configFile),
				config.WithFlags(cmd.Flags()),
			)
			if err != nil {
				return errors.Wrap(err, "load config")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(ctx, appKey{}, a))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (json, yaml or toml)")
	flags.String("base-url", authclient.DefaultBaseURL, "API base URL")
	flags.String("mode", string(authclient.TransportToken), "transport mode: token or cookie")
	flags.Duration("timeout", authclient.DefaultTimeout, "per request timeout")
	flags.String("storage", config.DriverSQLite, "storage driver: memory, sqlite or redis")
	flags.String("storage-dsn", "", "storage DSN or redis URL")
	flags.String("storage-prefix", "", "key prefix for redis storage")
	flags.String("log-level", "info", "log level")
	flags.String("metrics-file", "", "write request metrics to this file on exit")

	root.AddCommand(
		newLoginCommand(),
		newRegisterCommand(),
		newLogoutCommand(),
		newStatusCommand(),
		newDashboardCommand(),
		newPaymentsCommand(),
		newProfileCommand(),
		newPasswordCommand(),
		newOpenCommand(),
		newRoutesCommand(),
	)

	return root
}

func printJSON(w io.Writer, v any) {
	fmt.Fprintln(w, print.MaybePrettyJSON(v))
}

// visit navigates to target and reports whether the guard let us stay there.
func visit(cmd *cobra.Command, target string) (bool, error) {
	a := fromCommand(cmd)

	loc, err := a.router.Resolve(cmd.Context(), target)
	if err != nil {
		return false, err
	}

	if want, ok := a.routes.Lookup(target); ok && want.Name != loc.Name {
		fmt.Fprintf(cmd.OutOrStdout(), "redirected to %s (%s)\n", loc.Name, loc.Path)
		return false, nil
	}
	return true, nil
}

func resultError(r authclient.Result) error {
	if r.Success {
		return nil
	}
	return errors.New(r.Message)
}
