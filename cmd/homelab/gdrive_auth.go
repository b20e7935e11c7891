package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/snadboy/homelab-scripts/internal/gdrive"
)

type gdriveAuthOptions struct {
	credentials string
	tokenFile   string
	port        int
	noBrowser   bool
}

func newGDriveAuthCmd(opts *rootOptions) *cobra.Command {
	var flags gdriveAuthOptions
	cmd := &cobra.Command{
		Use:   "gdrive-auth",
		Short: "Authorize Google Drive access for the backup upload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			if flags.tokenFile == "" {
				flags.tokenFile = a.cfg.GDrive.TokenFile
			}
			if flags.port <= 0 {
				flags.port = a.cfg.GDrive.Port
			}
			paths := a.cfg.GDrive.CredentialsPaths
			if flags.credentials != "" {
				paths = []string{flags.credentials}
			}
			return runGDriveAuth(cmd.Context(), cmd.OutOrStdout(), paths, flags)
		},
	}
	cmd.Flags().StringVar(&flags.credentials, "credentials", "", "OAuth client secret file (default: search the usual locations)")
	cmd.Flags().StringVar(&flags.tokenFile, "token", "", "Where to write the token")
	cmd.Flags().IntVar(&flags.port, "port", 0, "Local port for the OAuth redirect")
	cmd.Flags().BoolVar(&flags.noBrowser, "no-browser", false, "Only print the consent URL")
	return cmd
}

func runGDriveAuth(ctx context.Context, w io.Writer, credentialPaths []string, flags gdriveAuthOptions) error {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Google Drive OAuth Authentication")
	fmt.Fprintln(w, rule)

	credentials, err := gdrive.FindCredentials(credentialPaths)
	if err != nil {
		fmt.Fprintf(w, "\n%s Could not find credentials file.\n", red("ERROR:"))
		fmt.Fprintln(w, "Searched locations:")
		for _, p := range credentialPaths {
			fmt.Fprintf(w, "  - %s\n", p)
		}
		fmt.Fprintln(w, "\nDownload OAuth credentials from Google Cloud Console")
		fmt.Fprintln(w, "and save as 'gdrive_credentials.json' in the current directory.")
		return err
	}
	fmt.Fprintf(w, "\nUsing credentials: %s\n", credentials)

	oauthCfg, err := gdrive.LoadOAuthConfig(credentials)
	if err != nil {
		return err
	}

	auth := &gdrive.LocalServerAuth{
		Config:      oauthCfg,
		Addr:        fmt.Sprintf("localhost:%d", flags.port),
		Out:         w,
		OpenBrowser: gdrive.OpenBrowser,
	}
	if flags.noBrowser {
		auth.OpenBrowser = nil
	}
	tok, err := auth.Authorize(ctx)
	if err != nil {
		return err
	}
	if err := gdrive.SaveToken(flags.tokenFile, tok); err != nil {
		return err
	}

	abs, err := filepath.Abs(flags.tokenFile)
	if err != nil {
		abs = flags.tokenFile
	}
	fmt.Fprintf(w, "\nToken saved to: %s\n", abs)
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Copy the token next to the backup job (see portainer.remote.token_file)")
	fmt.Fprintln(w, "  2. Run portainer-backup with portainer.remote.type set to gdrive")

	fmt.Fprintln(w, "\nTesting connection...")
	svc, err := gdrive.NewService(ctx, oauthCfg, flags.tokenFile)
	if err != nil {
		return err
	}
	info, err := gdrive.About(ctx, svc)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Connected as: %s (%s)\n", cyan(info.DisplayName), info.Email)
	if info.LimitBytes > 0 {
		fmt.Fprintf(w, "Storage used: %s of %s\n", humanize.Bytes(uint64(info.UsageBytes)), humanize.Bytes(uint64(info.LimitBytes)))
	} else {
		fmt.Fprintf(w, "Storage used: %s\n", humanize.Bytes(uint64(info.UsageBytes)))
	}
	fmt.Fprintln(w, green("Authentication successful!"))
	return nil
}
