package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// status: print whether the gateway is authenticated.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the connection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			st, err := api.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (authenticated: %t)\n", st.Status, st.Authenticated)
			return nil
		},
	}
}
