package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/minios-linux/tweekit/config"
	"github.com/minios-linux/tweekit/i18n"
	"github.com/minios-linux/tweekit/settings"
	"github.com/spf13/cobra"
)

// ---------------------------------------------------------------------------
// auth (translation platform token)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: i18n.T("Manage the translation platform token"),
	}
	cmd.AddCommand(newAuthLoginCmd(), newAuthLogoutCmd(), newAuthListCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: i18n.T("Store the translation platform token"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "\n%sParaTranz: %s%s\n", colorBlue, i18n.T("Token Setup"), colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			fmt.Fprintf(os.Stderr, "  %s %s%s%s\n\n", i18n.T("Get your token from:"), colorGreen, "https://paratranz.cn/users/my", colorReset)

			existing := settings.GetToken(config.PlatformID)
			if existing != "" {
				fmt.Fprintf(os.Stderr, "  %s %s%s%s\n", i18n.T("Current token:"), colorYellow, settings.MaskKey(existing), colorReset)
				fmt.Fprintf(os.Stderr, "  %s", i18n.T("Enter new token to replace, or press Enter to keep: "))
			} else {
				fmt.Fprintf(os.Stderr, "  %s", i18n.T("Enter token: "))
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() {
				return fmt.Errorf("no input received")
			}
			token := strings.TrimSpace(scanner.Text())
			if token == "" {
				if existing != "" {
					logInfo("%s", i18n.T("Keeping existing token"))
					return nil
				}
				return fmt.Errorf("no token provided")
			}

			if err := settings.SetToken(config.PlatformID, p.cfg.Platform.BaseURL, token); err != nil {
				return fmt.Errorf("saving token: %w", err)
			}
			logSuccess(i18n.T("Token saved to %s"), settings.FilePath())
			return nil
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: i18n.T("Remove the stored platform token"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.Remove(config.PlatformID); err != nil {
				return err
			}
			logSuccess("%s", i18n.T("Token removed"))
			return nil
		},
	}
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   i18n.T("Show where the platform token comes from"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Stored Credentials"), colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

			token, source := settings.ResolveToken(config.PlatformID, p.cfg.Platform.TokenEnv)
			if token == "" {
				fmt.Fprintf(os.Stderr, "  %-14s %s%s%s\n", config.PlatformID, colorRed, i18n.T("not configured"), colorReset)
			} else {
				fmt.Fprintf(os.Stderr, "  %-14s %s%s%s (%s, %s)\n", config.PlatformID,
					colorGreen, i18n.T("configured"), colorReset, settings.MaskKey(token), source)
			}
			fmt.Fprintln(os.Stderr)
			return nil
		},
	}
}
