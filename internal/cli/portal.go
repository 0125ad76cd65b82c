package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vibehealth/healthsync/pkg/client"
)

func newPortalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "portal",
		Aliases: []string{"portals"},
		Short:   "Manage health portal connections",
	}

	cmd.AddCommand(newPortalListCmd())
	cmd.AddCommand(newPortalConnectCmd())
	cmd.AddCommand(newPortalSyncCmd())
	cmd.AddCommand(newPortalDisconnectCmd())

	return cmd
}

func newPortalListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List portal connection attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			conns, err := apiClient.Portals().List(context.Background())
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(conns)
			}

			table := NewTable("ID", "PORTAL", "NAME", "STATUS", "ERROR", "LAST SYNC")
			for _, c := range conns {
				table.AddRow(c.ID, c.PortalType, c.PortalName, formatStatus(c.Status), c.ErrorCode, formatTime(c.LastSyncAt))
			}
			table.Render()
			return nil
		},
	}
}

func newPortalConnectCmd() *cobra.Command {
	var (
		portalID    string
		credentials []string
	)

	cmd := &cobra.Command{
		Use:   "connect <portal-type>",
		Short: "Connect a health portal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := make(map[string]string, len(credentials))
			for _, kv := range credentials {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid credential %q, expected key=value", kv)
				}
				creds[parts[0]] = parts[1]
			}

			conn, err := apiClient.Portals().Connect(context.Background(), client.ConnectPortalRequest{
				PortalType:  args[0],
				PortalID:    portalID,
				Credentials: creds,
			})
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(conn)
			}

			fmt.Printf("Connection %s: %s\n", conn.ID, formatStatus(conn.Status))
			if conn.ErrorCode != "" {
				fmt.Printf("Error: %s %s\n", conn.ErrorCode, conn.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&portalID, "portal-id", "", "institution identifier within the portal")
	cmd.Flags().StringSliceVar(&credentials, "cred", nil, "portal credential as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("cred")

	return cmd
}

func newPortalSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <connection-id>",
		Short: "Pull checkup and medical records for one connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := apiClient.Portals().Sync(context.Background(), args[0])
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			fmt.Printf("Sync %s: %d checkups, %d medical records\n",
				formatStatus(result.Status), result.CheckupCount, result.MedicalCount)
			if len(result.Errors) > 0 {
				fmt.Printf("Errors: %s\n", strings.Join(result.Errors, "; "))
			}
			return nil
		},
	}
}

func newPortalDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <connection-id>",
		Short: "Revoke a portal connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Portals().Disconnect(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("Portal disconnected")
			return nil
		},
	}
}
