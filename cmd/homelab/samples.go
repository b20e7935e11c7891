package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/snadboy/homelab-scripts/internal/httpclient"
	"github.com/snadboy/homelab-scripts/internal/samples"
)

// jokeURL is swapped by tests.
var jokeURL = samples.JokeURL

func newJokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "joke",
		Short: "Fetch a random joke (network check)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			client := httpclient.New(httpclient.Options{Timeout: 10 * time.Second})
			joke, err := samples.FetchJoke(cmd.Context(), client, jokeURL)
			if err != nil {
				return err
			}
			samples.PrintJoke(cmd.OutOrStdout(), joke, time.Now())
			return nil
		},
	}
}

func newSysinfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sysinfo",
		Short: "Print a system information report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			info, err := samples.CollectSystemInfo(cmd.Context())
			if err != nil {
				return err
			}
			samples.PrintSystemInfo(cmd.OutOrStdout(), info, time.Now())
			return nil
		},
	}
}

func newMetricsDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics-demo",
		Short: "Analyze a fixed set of generated server metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			now := time.Now()
			records := samples.GenerateRecords(now)
			analysis, err := samples.Analyze(records, now)
			if err != nil {
				return err
			}
			samples.PrintMetricsDemo(cmd.OutOrStdout(), records, analysis, now)
			return nil
		},
	}
}

func newSelftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Print an environment report; needs nothing but the binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			_, err := samples.SelfTest(cmd.OutOrStdout(), time.Now())
			return err
		},
	}
}
