// Package main is the TapKeeper terminal client: password plus card
// sign-in, registration and the vault shell.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atinyakov/TapKeeper/internal/client/api"
	"github.com/atinyakov/TapKeeper/internal/client/cli"
	"github.com/atinyakov/TapKeeper/internal/client/flow"
	"github.com/atinyakov/TapKeeper/internal/client/poll"
	"github.com/atinyakov/TapKeeper/internal/client/vault"
	"github.com/atinyakov/TapKeeper/internal/config"
	"github.com/atinyakov/TapKeeper/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// app carries the wiring shared by every subcommand.
type app struct {
	opts      config.ClientOptions
	log       *logger.Logger
	client    *api.Client
	scheduler *poll.Scheduler
	prompt    *cli.Prompter
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:           "tapkeeper",
		Short:         "Password vault with two-factor card sign-in",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, configPath)
		},
	}

	defaults := config.DefaultClientOptions()
	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "tapkeeper.json", "path to client config file")
	flags.String("url", defaults.URL, "backend base URL")
	flags.String("ca", "", "PEM bundle trusted for the backend certificate")
	flags.Duration("timeout", time.Duration(defaults.Timeout), "per-request timeout")
	flags.String("variant", defaults.Variant, "login protocol: token or password")
	flags.String("scan-path", defaults.ScanPath, "endpoint polled for card taps")
	flags.Duration("poll-interval", time.Duration(defaults.PollInterval), "delay between scans with no card")
	flags.Duration("poll-error-interval", time.Duration(defaults.PollErrorInterval), "delay after a failed scan")
	flags.Duration("poll-timeout", time.Duration(defaults.PollTimeout), "give up waiting for a card after this long, 0 waits forever")
	flags.Int("poll-max-attempts", 0, "give up after this many scans, 0 means unlimited")
	flags.String("authenticated-path", defaults.AuthenticatedPath, "area opened after sign-in")
	flags.String("landing-path", defaults.LandingPath, "area opened after registration")
	flags.String("log-level", defaults.LogLevel, "log level")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newTestTapCmd(a),
		newVersionCmd(),
	)
	return root
}

// init resolves the options (defaults, file, environment, then flags the
// user set explicitly) and builds the shared clients.
func (a *app) init(cmd *cobra.Command, configPath string) error {
	opts, err := config.LoadClient(configPath, os.Getenv)
	if err != nil {
		return err
	}
	var setErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == "config" || setErr != nil {
			return
		}
		setErr = opts.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})
	if setErr != nil {
		return setErr
	}
	a.opts = opts

	a.log = logger.New()
	if err := a.log.InitConsole(opts.LogLevel); err != nil {
		return err
	}

	httpClient, err := api.NewHTTPClient(api.TLSOptions{
		CAFile:  opts.CA,
		Timeout: time.Duration(opts.Timeout),
	})
	if err != nil {
		return err
	}
	a.client = api.NewClient(httpClient, opts.URL,
		api.WithScanPath(opts.ScanPath),
		api.WithLogger(a.log.Log),
	)
	a.scheduler = poll.NewScheduler(poll.Config{
		NotReadyDelay: time.Duration(opts.PollInterval),
		ErrorDelay:    time.Duration(opts.PollErrorInterval),
		MaxAttempts:   opts.PollMaxAttempts,
		Timeout:       time.Duration(opts.PollTimeout),
	}, poll.WithLogger(a.log.Log))
	a.prompt = cli.NewPrompter(os.Stdin, os.Stdout)
	return nil
}

func newLoginCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with your password and card, then open the vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			variant, err := flow.ParseVariant(a.opts.Variant)
			if err != nil {
				return err
			}

			term := cli.NewTerminal(os.Stdout)
			login := flow.NewLoginController(a.client, a.scheduler, term, term, flow.LoginConfig{
				Variant:           variant,
				AuthenticatedPath: a.opts.AuthenticatedPath,
			}, a.log.Log)
			defer login.Cancel()

			path, err := cli.SignIn(ctx, login, term, a.prompt, os.Stderr, username)
			if err != nil {
				return err
			}
			a.log.Log.Debug("signed in", zap.String("path", path))
			fmt.Println("Signed in")

			vm := vault.NewViewModel(a.client, a.log.Log)
			return cli.NewShell(vm, a.prompt, os.Stdout, login.Logout).Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name, optional when passwords are unique")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account bound to a card",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			term := cli.NewTerminal(os.Stdout)
			reg := flow.NewRegistrationController(a.client, a.scheduler, term, term, a.opts.LandingPath, a.log.Log)
			defer reg.Cancel()

			if err := cli.SignUp(ctx, reg, term, a.prompt, os.Stderr, username); err != nil {
				return err
			}
			fmt.Println("Registration complete. You can now log in.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name, defaults to the card uid")
	return cmd
}

func newTestTapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test-tap <uid>",
		Short: "Queue a simulated card tap on a development backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client.PushTestToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("tap rejected: %s", cmp.Or(resp.Message, "unknown reason"))
			}
			fmt.Println("Tap queued")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build version and date",
		// Skip option loading so a broken config still prints the version.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(*cobra.Command, []string) {
			fmt.Printf("TapKeeper Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		},
	}
}
