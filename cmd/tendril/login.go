package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in, pausing for security challenges",
	Long: `Signs in with the given or configured credentials. When the site shows a
challenge, solve it in the browser window and press Enter to continue.
Use a persistent browser.user_data_dir so the session outlives this command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		if username == "" {
			username = cfg.Auth.Username
		}
		password := cfg.Auth.Password
		if username != "" && password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(raw)
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Login(cmd.Context(), tendril.Credentials{Username: username, Password: password})
		if err != nil {
			return err
		}

		in := bufio.NewReader(cmd.InOrStdin())
		for res.Status == domain.LoginAwaiting {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\nPress Enter once done... ", strings.TrimSpace(res.Prompt))
			if _, err := in.ReadString('\n'); err != nil {
				_ = a.svc.CancelLogin(res.RunID)
				return fmt.Errorf("login abandoned: %w", err)
			}
			if res, err = a.svc.ConfirmLogin(cmd.Context(), res.RunID); err != nil {
				return err
			}
		}
		if err := render(cmd, res, tui.LoginMarkdown(res)); err != nil {
			return err
		}
		if !res.Authenticated {
			return fmt.Errorf("login failed: %s", res.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().String("username", "", "Account username (defaults to auth.username)")
	addJSONFlag(loginCmd)
}
