package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"farepay/internal/app/payments"
	"farepay/internal/poller"
)

const payExample = `  farepay-cli pay --subject psv-7 --phone 0712345678 --item stage-1:CBD:50:2
  Ctrl-C stops waiting; it does not cancel the prompt on the phone.`

func payCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pay",
		Short:   "Send a push prompt to the payer and wait for the outcome",
		Example: payExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPay(cmd, v)
		},
	}
	cmd.Flags().String("subject", "", "vehicle or route the fare is paid for")
	cmd.Flags().String("phone", "", "payer phone number")
	cmd.Flags().StringArray("item", nil, "line item id:description:fare:qty (repeatable)")
	cmd.Flags().Duration("interval", poller.DefaultInterval, "status query interval")
	cmd.Flags().Duration("deadline", poller.DefaultDeadline, "give up waiting after this long")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("item")
	_ = v.BindPFlag("interval", cmd.Flags().Lookup("interval"))
	_ = v.BindPFlag("deadline", cmd.Flags().Lookup("deadline"))
	return cmd
}

func runPay(cmd *cobra.Command, v *viper.Viper) error {
	subject, _ := cmd.Flags().GetString("subject")
	phone, _ := cmd.Flags().GetString("phone")
	rawItems, _ := cmd.Flags().GetStringArray("item")
	items, err := parseItems(rawItems)
	if err != nil {
		return err
	}

	logger := newLogger(v)
	defer func() { _ = logger.Sync() }()
	api := newClient(v, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, err := api.Initiate(ctx, payments.InitiatePaymentRequest{SubjectID: subject, PayerContact: phone, LineItems: items})
	if err != nil {
		return fmt.Errorf("payment not started: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Prompt sent. Reference %s. Waiting for the payer...\n", ref)

	supervisor := poller.NewSupervisor(api, poller.Config{
		Interval: v.GetDuration("interval"),
		Deadline: v.GetDuration("deadline"),
	}, logger)
	poll := supervisor.Start(ctx, ref)
	<-poll.Done()

	return report(cmd, poll.Result())
}

func report(cmd *cobra.Command, o poller.Outcome) error {
	out := cmd.OutOrStdout()
	switch o.State {
	case poller.StateResolvedSuccess:
		receipt := "(none)"
		if o.Receipt != nil {
			receipt = o.Receipt.ReceiptNumber
		}
		fmt.Fprintf(out, "Paid. Receipt %s.\n", receipt)
		return nil
	case poller.StateResolvedFailure:
		if o.TimedOut {
			return fmt.Errorf("no answer within %s; check again later with: farepay-cli status %s", o.Elapsed, o.MerchantReference)
		}
		if o.FailureDescription != "" {
			return fmt.Errorf("payment failed (%s): %s", o.FailureReason, o.FailureDescription)
		}
		return fmt.Errorf("payment failed (%s)", o.FailureReason)
	case poller.StateCancelled:
		fmt.Fprintf(out, "Stopped waiting. Check later with: farepay-cli status %s\n", o.MerchantReference)
		return nil
	}
	return fmt.Errorf("unexpected poll state %s", o.State)
}
