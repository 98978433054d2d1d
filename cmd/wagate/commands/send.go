package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"wagate/internal/client"
)

// send <kind>: submit one outbound message.
func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message",
	}
	cmd.AddCommand(sendTextCmd(), sendImageCmd(), sendFileCmd(), sendLinkCmd())
	return cmd
}

func sendTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text <phone> <text>",
		Short: "Send a text message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			res, err := api.SendText(ctx, args[0], args[1])
			return printSent(cmd, res, err)
		},
	}
}

func sendImageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "image <phone> <url> <caption>",
		Short: "Send an image by URL",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			res, err := api.SendImage(ctx, args[0], args[1], args[2])
			return printSent(cmd, res, err)
		},
	}
}

func sendFileCmd() *cobra.Command {
	var mimetype, fileName string
	cmd := &cobra.Command{
		Use:   "file <phone> <url> <caption>",
		Short: "Send a document by URL",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			res, err := api.SendFile(ctx, args[0], args[1], args[2], mimetype, fileName)
			return printSent(cmd, res, err)
		},
	}
	cmd.Flags().StringVar(&mimetype, "mimetype", "", "document MIME type (default application/pdf)")
	cmd.Flags().StringVar(&fileName, "filename", "", "file name shown to the recipient")
	return cmd
}

func sendLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <phone> <url> <text>",
		Short: "Send a link with a preview card",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			res, err := api.SendLink(ctx, args[0], args[1], args[2])
			return printSent(cmd, res, err)
		},
	}
}

func printSent(cmd *cobra.Command, res client.SendResult, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", res.ID, res.Contact)
	return nil
}
