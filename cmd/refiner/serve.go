package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/prompt-refiner/internal/transport"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the refiner over gRPC",
	Long: `Start the refiner.v1.Refiner gRPC service and the standard health
service. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.GRPCAddr = serveAddr
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := transport.NewServer(a, a.store, a.weights, a.logger)
		g := transport.NewGRPCServer(srv, a.logger)
		return transport.Serve(ctx, g, cfg.GRPCAddr, a.logger)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (REFINER_GRPC_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
