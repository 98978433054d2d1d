package commands

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"wagate/internal/client"
)

const defaultServer = "http://127.0.0.1:3000"

var (
	serverURL string
	apiKey    string
	timeout   time.Duration

	api *client.HTTP
)

func Execute() error {
	return newRoot().Execute()
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "wagate",
		Short:         "Control a running messaging gateway",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			api = client.NewHTTP(serverURL, &http.Client{})
			api.APIKey = apiKey
			return nil
		},
	}

	server := os.Getenv("WAGATE_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&serverURL, "server", server, "gateway base URL (env WAGATE_SERVER)")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("WAGATE_API_KEY"), "API key (env WAGATE_API_KEY)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(statusCmd(), qrCmd(), sendCmd(), logoutCmd(), watchCmd())
	return root
}

// requestContext bounds one API call by --timeout.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
