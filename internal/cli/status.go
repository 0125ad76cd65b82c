package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show integration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			format := getOutputFormat()
			if format != "table" {
				summary := map[string]interface{}{}

				devices, err := apiClient.Devices().List(ctx)
				if err == nil {
					summary["devices"] = len(devices)
				}
				portals, err := apiClient.Portals().List(ctx)
				if err == nil {
					summary["portals"] = len(portals)
				}
				consents, err := apiClient.Consents().List(ctx)
				if err == nil {
					summary["consents"] = len(consents)
				}
				return printOutput(summary)
			}

			fmt.Println("HealthSync Integrations")
			fmt.Println(strings.Repeat("=", 40))

			devices, err := apiClient.Devices().List(ctx)
			if err != nil {
				fmt.Printf("  Devices:   (error: %v)\n", err)
			} else {
				active := 0
				for _, d := range devices {
					if d.Status == "ACTIVE" {
						active++
					}
				}
				fmt.Printf("  Devices:   %d active (%d total)\n", active, len(devices))
			}

			portals, err := apiClient.Portals().List(ctx)
			if err != nil {
				fmt.Printf("  Portals:   (error: %v)\n", err)
			} else {
				active := 0
				for _, p := range portals {
					if p.Status == "ACTIVE" {
						active++
					}
				}
				fmt.Printf("  Portals:   %d active (%d attempts)\n", active, len(portals))
			}

			consents, err := apiClient.Consents().List(ctx)
			if err != nil {
				fmt.Printf("  Consents:  (error: %v)\n", err)
			} else {
				active := 0
				for _, c := range consents {
					if c.Status == "ACTIVE" {
						active++
					}
				}
				fmt.Printf("  Consents:  %d active (%d total)\n", active, len(consents))
			}

			supported, err := apiClient.Supported(ctx)
			if err == nil {
				fmt.Printf("  Supported: %s / %s\n",
					strings.Join(supported.Vendors, ", "),
					strings.Join(supported.Portals, ", "))
			}

			return nil
		},
	}
}
