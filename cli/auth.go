package cli

import (
	"github.com/byuoitav/functions/guard"
	"github.com/spf13/cobra"
)

func newLoginCmd(r *root) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:         "login <username>",
		Short:       "Sign in",
		Long:        "Sign in and keep the session for later commands. The password is prompted for unless --password is given.",
		Args:        cobra.ExactArgs(1),
		Annotations: annotate(guard.Login),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("password") {
				var err error
				password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}

			return r.app.login(cmd.Context(), args[0], password)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password, prompted for when omitted")
	return cmd
}

func newRegisterCmd(r *root) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:         "register <username>",
		Short:       "Create an account",
		Long:        "Create an account. Registering does not sign you in.",
		Args:        cobra.ExactArgs(1),
		Annotations: annotate(guard.Register),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("password") {
				var err error
				password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}

			return r.app.register(cmd.Context(), args[0], password)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password, prompted for when omitted")
	return cmd
}

func newLogoutCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Sign out and forget the session",
		Args:        cobra.NoArgs,
		Annotations: annotate(guard.Home),
		RunE: func(cmd *cobra.Command, args []string) error {
			r.app.logout(cmd.Context())
			return nil
		},
	}
}

func newWhoamiCmd(r *root) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:         "whoami",
		Short:       "Show the signed in user",
		Args:        cobra.NoArgs,
		Annotations: annotate(guard.Home),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.app.whoami(cmd.Context(), remote)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the server who the session belongs to")
	return cmd
}
