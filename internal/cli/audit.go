package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tradeguard/internal/app"
)

func (r *runner) auditCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit records of the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, _, err := r.principal(ctx, a)
				if err != nil {
					return err
				}

				records, err := a.Audit.List(ctx, p.User.ID, limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					r.io.Println("No audit records")
					return nil
				}

				for _, rec := range records {
					details, _ := json.Marshal(rec.Details)
					r.io.Printf("%s  %-16s %s  %s\n", rec.Timestamp.Format(time.RFC3339), rec.Action, rec.IPHash, details)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records")

	return cmd
}
