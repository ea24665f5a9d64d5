package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/nativeextractor/pkg/scanner"
	"github.com/praetorian-inc/nativeextractor/pkg/serve"
)

var (
	serveMiners     []string
	serveMinersFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as an NDJSON mining server",
	Long: `Run nativeextractor as a long-lived server that reads requests from stdin
and writes responses to stdout, one JSON document per line.

Requests: {"type":"mine","payload":{"content":..,"source":..}},
{"type":"mine_batch","payload":{"items":[..]}}, {"type":"miners"} and
{"type":"close"}. Miners are loaded once at startup; the server runs until
stdin closes, a close request arrives, or SIGTERM is received.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringArrayVar(&serveMiners, "miner", nil, "Miner as locator:symbol[:params] (repeatable)")
	serveCmd.Flags().StringVar(&serveMinersFile, "miners-file", "", "YAML file listing miners")
}

func runServe(cmd *cobra.Command, args []string) error {
	specs, err := resolveMiners(serveMiners, serveMinersFile)
	if err != nil {
		return err
	}

	core, err := newCore(scanner.Config{Miners: specs})
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}
