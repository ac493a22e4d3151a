package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/hangar/internal/apierr"
	"github.com/five82/hangar/internal/app"
	"github.com/five82/hangar/internal/prefs"
	"github.com/five82/hangar/internal/session"
)

const passwordEnv = "HANGAR_PASSWORD"

var errNotSignedIn = errors.New("not signed in")

func newAuthCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newLoginCommand(ctx),
		newLogoutCommand(ctx),
		newWhoAmICommand(ctx),
	}
}

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: "Sign in to the control plane. The password is read from stdin with " +
			"--password-stdin or from $" + passwordEnv + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				if strings.TrimSpace(username) == "" {
					username = prefs.Load(rt.PrefsPath).Username
				}
				if strings.TrimSpace(username) == "" {
					return errors.New("--username is required")
				}
				password, err := readPassword(cmd.InOrStdin(), passwordStdin)
				if err != nil {
					return err
				}

				user, err := rt.Login(cmd.Context(), session.Credentials{Username: username, Password: password})
				if err != nil {
					return loginError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Label())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account name (defaults to the last one used)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func readPassword(in io.Reader, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		if password := strings.TrimRight(line, "\r\n"); password != "" {
			return password, nil
		}
		return "", errors.New("empty password on stdin")
	}
	if password := os.Getenv(passwordEnv); password != "" {
		return password, nil
	}
	return "", fmt.Errorf("no password: use --password-stdin or set $%s", passwordEnv)
}

// loginError lists field errors under the server's message.
func loginError(err error) error {
	apiErr, ok := apierr.As(err)
	if !ok || len(apiErr.FieldErrors) == 0 {
		return fmt.Errorf("login: %w", err)
	}
	fields := make([]string, 0, len(apiErr.FieldErrors))
	for field := range apiErr.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString("login: ")
	b.WriteString(apiErr.Message)
	for _, field := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", field, apiErr.FieldErrors[field])
	}
	return errors.New(b.String())
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				if err := rt.Logout(cmd.Context()); err != nil {
					return fmt.Errorf("logout: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newWhoAmICommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				user, err := rt.CheckIdentity(cmd.Context())
				if err != nil {
					return err
				}
				if user == nil {
					return errNotSignedIn
				}
				if asJSON {
					return writeJSON(cmd, user)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", user.Label(), user.ID)
				if len(user.Roles) > 0 {
					fmt.Fprintf(out, "Roles: %s\n", strings.Join(user.Roles, ", "))
				}
				fmt.Fprintf(out, "Server: %s\n", rt.Config.APIURL)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
