package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/snadboy/homelab-scripts/internal/httpclient"
	"github.com/snadboy/homelab-scripts/internal/plex"
)

func newPlexLastPlayedCmd(opts *rootOptions) *cobra.Command {
	var count, section int
	cmd := &cobra.Command{
		Use:   "plex-last-played",
		Short: "List the movies most recently played on Plex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			if count <= 0 {
				count = a.cfg.Plex.Count
			}
			if section <= 0 {
				section = a.cfg.Plex.LibrarySection
			}
			client, err := plex.NewClient(a.cfg.Services.Plex, a.http)
			if err != nil {
				return err
			}
			return runPlexLastPlayed(cmd.Context(), cmd.OutOrStdout(), client, a.cfg.Services.Plex.URL, section, count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of movies to list (default from config, 3)")
	cmd.Flags().IntVar(&section, "section", 0, "Library section ID (default from config, 1)")
	return cmd
}

func runPlexLastPlayed(ctx context.Context, w io.Writer, client *plex.Client, server string, section, count int) error {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Plex - Last %d Movies Played\n", count)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Server: %s\n", server)
	fmt.Fprintf(w, "Timestamp: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, strings.Repeat("-", 60))

	movies, err := client.LastPlayed(ctx, section, count)
	if err != nil {
		var statusErr *httpclient.StatusError
		if !errors.As(err, &statusErr) {
			fmt.Fprintln(w, red("ERROR: Could not connect to Plex server"))
		}
		return err
	}

	if len(movies) == 0 {
		fmt.Fprintln(w, "No recently played movies found.")
	}
	for i, m := range movies {
		year := ""
		if m.Year != "" {
			year = " (" + m.Year + ")"
		}
		fmt.Fprintf(w, "\n%d. %s%s\n", i+1, m.Title, year)
		fmt.Fprintf(w, "   Watched: %s\n", m.ViewedAt)
		if m.User != "N/A" {
			fmt.Fprintf(w, "   User: %s\n", m.User)
		}
	}

	if movies == nil {
		movies = []plex.Movie{}
	}
	raw, err := json.MarshalIndent(movies, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\n"+strings.Repeat("-", 60))
	fmt.Fprintln(w, "JSON Output:")
	fmt.Fprintln(w, string(raw))
	fmt.Fprintln(w, "\n"+rule)
	return nil
}
