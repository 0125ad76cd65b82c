package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vibehealth/healthsync/pkg/client"
)

func newDeviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "device",
		Aliases: []string{"devices"},
		Short:   "Manage wearable device links",
	}

	cmd.AddCommand(newDeviceListCmd())
	cmd.AddCommand(newDeviceConnectCmd())
	cmd.AddCommand(newDeviceSyncCmd())
	cmd.AddCommand(newDeviceDisconnectCmd())

	return cmd
}

func newDeviceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List device links",
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := apiClient.Devices().List(context.Background())
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(links)
			}

			table := NewTable("ID", "VENDOR", "TYPE", "STATUS", "LAST SYNC")
			for _, l := range links {
				table.AddRow(l.ID, l.Vendor, l.DeviceType, formatStatus(l.Status), formatTime(l.LastSyncAt))
			}
			table.Render()
			return nil
		},
	}
}

func newDeviceConnectCmd() *cobra.Command {
	var (
		deviceType string
		authCode   string
		dataTypes  []string
	)

	cmd := &cobra.Command{
		Use:   "connect <vendor>",
		Short: "Link a new device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := apiClient.Devices().Connect(context.Background(), client.ConnectDeviceRequest{
				Vendor:           args[0],
				DeviceType:       deviceType,
				AuthCode:         authCode,
				ConsentDataTypes: dataTypes,
			})
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(link)
			}

			fmt.Printf("Linked %s %s (%s)\n", link.Vendor, link.DeviceType, link.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&deviceType, "type", "watch", "device type (watch, band, scale)")
	cmd.Flags().StringVar(&authCode, "auth-code", "", "OAuth authorization code from the vendor")
	cmd.Flags().StringSliceVar(&dataTypes, "data-types", nil, "consented data types (default: all the vendor supports)")
	_ = cmd.MarkFlagRequired("auth-code")

	return cmd
}

func newDeviceSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <link-id>",
		Short: "Pull health data for one device link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := apiClient.Devices().Sync(context.Background(), args[0])
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			fmt.Printf("Sync %s: %d items\n", formatStatus(result.Status), result.ItemCount)
			if len(result.Errors) > 0 {
				fmt.Printf("Errors: %s\n", strings.Join(result.Errors, "; "))
			}
			return nil
		},
	}
}

func newDeviceDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <link-id>",
		Short: "Revoke a device link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Devices().Disconnect(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("Device disconnected")
			return nil
		},
	}
}
