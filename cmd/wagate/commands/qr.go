package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// qr: print the current pairing code. Render it with any QR tool and scan
// it from the phone's linked devices screen.
func qrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qr",
		Short: "Print the pending pairing code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			code, err := api.QRCode(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
}
