package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"farepay/internal/app/payments"
)

func statusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status <merchant-reference>",
		Short: "Query a payment session once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(v)
			defer func() { _ = logger.Sync() }()

			view, err := newClient(v, logger).QueryStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payments.NewStatusResponse(view))
		},
	}
}
