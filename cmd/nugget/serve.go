package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	serverhttp "nugget/internal/server/http"
)

// shutdownWait bounds graceful shutdown after SIGINT/SIGTERM.
const shutdownWait = 10 * time.Second

func newServeCommand(flags *cliFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat API",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildContainer(flags)
			if err != nil {
				return err
			}
			cfg := container.Config
			if port > 0 {
				cfg.Server.Port = port
			}

			srv := serverhttp.NewServer(container.Chat, serverhttp.Config{
				Port:        cfg.Server.Port,
				CORSOrigins: cfg.Server.CORSOrigins,
				Debug:       flags.debug,
			}, container.Logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			fmt.Printf("%s listening on :%d (mode=%s)\n", bold("nugget"), cfg.Server.Port, cfg.Mode)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			fmt.Println("shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
			defer cancel()
			return srv.Stop(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Override listen port")
	return cmd
}
