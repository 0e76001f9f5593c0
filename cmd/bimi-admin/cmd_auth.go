package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/bimi-admin/api"
	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/screens"
	"github.com/jrsteele09/bimi-admin/token/jwt"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginEmail    string
	loginPassword string
)

// loginCmd exchanges credentials for a session
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session in the profile",
	Long: `Log in with an email and password. The password is prompted for when
--password is not given. A running dashboard on the same profile picks the
new session up immediately.`,
	RunE: runLogin,
}

// logoutCmd removes the stored session
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	RunE:  runLogout,
}

// whoamiCmd shows the logged in user
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user and access token details",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	email := strings.TrimSpace(loginEmail)
	if email == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Email: ")
		if email, err = readLine(in); err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		if password, err = readPassword(cmd, in); err != nil {
			return err
		}
	}

	result, err := a.Auth.Login(cmd.Context(), api.Credentials{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("login failed: %s", api.DetailOf(err))
	}
	sess := result.Session()
	if err := a.Store.Save(sess); err != nil {
		return err
	}

	landing := screens.Landing(sess.Role())
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s). Dashboard opens on %s.\n",
		sess.User.DisplayName(), sess.Role(), landing.Title())
	return nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword prompts without echo on a terminal and reads a plain line otherwise.
func readPassword(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return readLine(in)
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Store.Active() {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
		return nil
	}
	if err := a.Store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.Store.Session()
	if !sess.Active() {
		return errors.Wrapf(errors.ErrNotAuthenticated, "run bimi-admin login")
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "User:\t%s\n", sess.User.DisplayName())
	if sess.User != nil && sess.User.Email != "" {
		fmt.Fprintf(w, "Email:\t%s\n", sess.User.Email)
	}
	fmt.Fprintf(w, "Role:\t%s\n", sess.Role())
	fmt.Fprintf(w, "Can upload:\t%t\n", sess.Role().CanUpload())
	fmt.Fprintf(w, "Refresh token:\t%t\n", sess.RefreshToken != "")

	info, err := jwt.Introspect(sess.AccessToken)
	switch {
	case errors.Is(err, errors.ErrUnsupported):
		fmt.Fprintf(w, "Access token:\topaque\n")
	case err != nil:
		return err
	case info.ExpiresAt.IsZero():
		fmt.Fprintf(w, "Access token:\tno expiry\n")
	case info.ExpiresIn() == 0:
		fmt.Fprintf(w, "Access token:\texpired %s (refreshed on next request)\n", info.ExpiresAt.Local().Format(time.RFC1123))
	default:
		fmt.Fprintf(w, "Access token:\texpires in %s\n", info.ExpiresIn().Round(time.Second))
	}
	return nil
}
