package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"timesheet/internal/gcal"
	appLog "timesheet/internal/log"
	"timesheet/internal/render"
	"timesheet/internal/secret"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Store credentials for a calendar source",
	}
	cmd.AddCommand(newAuthGoogleCmd(a))
	cmd.AddCommand(newAuthExchangeCmd(a))
	return cmd
}

func newAuthGoogleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "google",
		Short: "Authorize read-only Google Calendar access and save the token",
		Long: `Open the printed consent URL, approve read-only calendar access and paste the
authorization code back. The token is written to google.token_file (0600).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			conf, err := gcal.LoadOAuthConfig(cfg.Google.ClientSecretFile)
			if err != nil {
				return err
			}
			tok, err := gcal.TokenFromWeb(cmd.Context(), conf, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := gcal.SaveToken(cfg.Google.TokenFile, tok); err != nil {
				return err
			}
			appLog.Info("google token saved", "path", cfg.Google.TokenFile)
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.Google.TokenFile)
			return nil
		},
	}
}

func newAuthExchangeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exchange",
		Short: "Save the Exchange password in the OS keyring",
		Long: `Prompt for the Exchange password of exchange.username (or exchange.email) and
store it in the OS keyring under exchange.keyring_service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			login := cfg.Exchange.Login()
			if login == "" {
				return errors.New("exchange.email is not configured")
			}

			pw, err := promptPassword(cmd.InOrStdin(), cmd.OutOrStdout(), login)
			if err != nil {
				return err
			}
			if err := secret.Store(cfg.Exchange.KeyringService, login, pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password for %s saved in keyring service %q\n", login, cfg.Exchange.KeyringService)
			return nil
		},
	}
}

// promptPassword uses a masked huh input on a terminal and reads one line
// otherwise, so the password can be piped in.
func promptPassword(in io.Reader, out io.Writer, login string) (string, error) {
	if f, ok := in.(*os.File); ok && render.IsTerminal(f) {
		var pw string
		err := huh.NewInput().
			Title("Exchange password for " + login).
			EchoMode(huh.EchoModePassword).
			Value(&pw).
			Run()
		if err != nil {
			return "", err
		}
		if pw == "" {
			return "", errors.New("empty password")
		}
		return pw, nil
	}

	fmt.Fprintf(out, "Exchange password for %s: ", login)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password")
	}
	return pw, nil
}
