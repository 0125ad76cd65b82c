package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newConsentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "consent",
		Aliases: []string{"consents"},
		Short:   "Manage data-collection consents",
	}

	cmd.AddCommand(newConsentListCmd())
	cmd.AddCommand(newConsentRevokeCmd())

	return cmd
}

func newConsentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the consent ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			consents, err := apiClient.Consents().List(context.Background())
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(consents)
			}

			table := NewTable("ID", "SUBJECT", "NAME", "TYPE", "STATUS", "GRANTED")
			for _, c := range consents {
				table.AddRow(c.ID, c.SubjectType, c.SubjectName, c.ConsentType,
					formatStatus(c.Status), c.ConsentedAt.Local().Format("2006-01-02"))
			}
			table.Render()
			return nil
		},
	}
}

func newConsentRevokeCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "revoke <consent-id>",
		Short: "Withdraw a consent and revoke its linked device or portal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Consents().Revoke(context.Background(), args[0], reason); err != nil {
				return err
			}
			fmt.Println("Consent revoked")
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "revocation reason")

	return cmd
}
