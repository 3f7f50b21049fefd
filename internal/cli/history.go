package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sichatlabs/sichat-deploy/internal/adapter/repository/postgres"
	"github.com/sichatlabs/sichat-deploy/internal/config"
	"github.com/sichatlabs/sichat-deploy/pkg/db"
)

func newHistoryCmd() *cobra.Command {
	var (
		service string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deployment attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			conn, err := db.NewConnection(cfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}

			repo := postgres.NewRepository(conn)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			attempts, err := repo.ListRecent(ctx, service, limit)
			if err != nil {
				return fmt.Errorf("list attempts: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSERVICE\tIMAGE\tOUTCOME\tPHASE\tDOWNTIME\tERROR")
			for _, a := range attempts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					a.StartedAt.Format(time.RFC3339),
					a.ServiceName,
					a.ImageRef,
					a.Outcome,
					a.FailedPhase,
					a.Downtime,
					a.Error,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&service, "service", "sichat", "Service name to filter by")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of attempts to show")

	return cmd
}
