package cli

import (
	"fmt"

	"github.com/byuoitav/functions/config"
	"github.com/byuoitav/functions/guard"
	"github.com/byuoitav/functions/log"
	"github.com/spf13/cobra"
)

// routeAnnotation ties a command to the screen it stands for
const routeAnnotation = "route"

// Flags are the persistent flags of the root command
type Flags struct {
	APIURL      string
	SessionFile string
	LogLevel    string
	Ephemeral   bool
}

// Builder creates the App a command runs against
type Builder func(cmd *cobra.Command, flags Flags) (*App, error)

type root struct {
	build Builder
	flags Flags
	app   *App
}

// NewRootCmd creates the functions command
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithBuilder(DefaultBuilder)
}

// NewRootCmdWithBuilder creates the functions command on top of a custom App
func NewRootCmdWithBuilder(build Builder) *cobra.Command {
	r := &root{build: build}

	cmd := &cobra.Command{
		Use:   "functions",
		Short: "Manage tabulated functions on a functions server",
		Long: `functions is a client for the functions server. Sign in once with
'functions login'; the session is kept in a signed file until you log out or
the server rejects it.

Examples:
  functions register alice
  functions login alice
  functions functions create --name square --points "0,0; 1,1; 2,4"
  functions plot <id>
  functions shell`,
		SilenceUsage:      true,
		PersistentPreRunE: r.preRun,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&r.flags.APIURL, "api-url", "", "Base address of the functions server (env FUNCTIONS_API_URL)")
	pf.StringVar(&r.flags.SessionFile, "session-file", "", "File the session is kept in (env FUNCTIONS_SESSION_FILE)")
	pf.StringVar(&r.flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error (env FUNCTIONS_LOG_LEVEL)")
	pf.BoolVar(&r.flags.Ephemeral, "ephemeral", false, "Keep the session in memory only")

	cmd.AddCommand(newLoginCmd(r))
	cmd.AddCommand(newRegisterCmd(r))
	cmd.AddCommand(newLogoutCmd(r))
	cmd.AddCommand(newWhoamiCmd(r))
	cmd.AddCommand(newFunctionsCmd(r))
	cmd.AddCommand(newPointsCmd(r))
	cmd.AddCommand(newPlotCmd(r))
	cmd.AddCommand(newShellCmd(r))

	return cmd
}

// preRun builds the app and runs the route guard for commands bound to a route
func (r *root) preRun(cmd *cobra.Command, args []string) error {
	route, ok := cmd.Annotations[routeAnnotation]
	if !ok {
		return nil
	}

	app, err := r.build(cmd, r.flags)
	if err != nil {
		return err
	}

	r.app = app
	return r.app.Enter(guard.Route(route))
}

// DefaultBuilder loads the configuration, lets flags override it and opens
// the persisted session
func DefaultBuilder(cmd *cobra.Command, flags Flags) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("api-url") {
		cfg.APIURL = flags.APIURL
	}

	if cmd.Flags().Changed("session-file") {
		cfg.SessionFile = flags.SessionFile
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	storage, cookies, err := OpenStorage(cfg, flags.Ephemeral)
	if err != nil {
		return nil, fmt.Errorf("unable to open session storage: %w", err)
	}

	return NewApp(cfg, storage, cookies, cmd.OutOrStdout())
}

func annotate(route guard.Route) map[string]string {
	return map[string]string{routeAnnotation: string(route)}
}
