package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/grovetools/invoicedash/cli"
	"github.com/grovetools/invoicedash/errors"
	"github.com/grovetools/invoicedash/logging"
	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/grovetools/invoicedash/pkg/realtime"
	"github.com/spf13/cobra"
)

// NewEmitCmd returns the emit command, which sends one client event and
// waits for its acknowledgment.
func NewEmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Send a client event to the event server",
	}

	cmd.AddCommand(newEmitCreateCmd())
	cmd.AddCommand(newEmitUpdateCmd())

	return cmd
}

func newEmitCreateCmd() *cobra.Command {
	var (
		number     string
		clientName string
		amount     float64
		status     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Broadcast a new invoice",
		Example: `  invoicedash emit create --number INV-1042 --client "Acme" --amount 1250`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if number == "" {
				return errors.InvalidInput("number", "must not be empty")
			}
			st, err := models.ParseInvoiceStatus(status)
			if err != nil {
				return err
			}
			req := models.NewInvoiceRequest{
				Number:     number,
				Status:     st,
				Amount:     amount,
				ClientName: clientName,
			}
			return emitAndWait(cmd, func(c *realtime.Client, ack realtime.AckFunc) error {
				return c.CreateInvoice(req, ack)
			})
		},
	}

	cmd.Flags().StringVar(&number, "number", "", "Invoice number")
	cmd.Flags().StringVar(&clientName, "client", "", "Client name")
	cmd.Flags().Float64Var(&amount, "amount", 0, "Invoice amount")
	cmd.Flags().StringVar(&status, "status", string(models.StatusDraft), "Invoice status")
	return cmd
}

func newEmitUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "update <invoice-id> <status>",
		Short:   "Broadcast an invoice status change",
		Args:    cobra.ExactArgs(2),
		Example: `  invoicedash emit update 3 paid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.InvalidInput("invoice id", args[0])
			}
			st, err := models.ParseInvoiceStatus(args[1])
			if err != nil {
				return err
			}
			update := models.InvoiceUpdate{ID: id, Status: st}
			return emitAndWait(cmd, func(c *realtime.Client, ack realtime.AckFunc) error {
				return c.EmitInvoiceUpdate(update, ack)
			})
		},
	}
}

// emitAndWait connects, runs send and prints the acknowledgment.
func emitAndWait(cmd *cobra.Command, send func(*realtime.Client, realtime.AckFunc) error) error {
	logger := cli.GetLogger(cmd, "emit")

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}

	opts := realtime.OptionsFromConfig(cfg.Client)
	// no retries for a one-shot send
	opts.ReconnectAttempts = 0
	client := realtime.NewClient(opts, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.HandshakeTimeout+opts.AckTimeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	type result struct {
		data json.RawMessage
		err  error
	}
	acked := make(chan result, 1)
	if err := send(client, func(data json.RawMessage, err error) {
		acked <- result{data, err}
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-acked:
		if r.err != nil {
			return r.err
		}
		if cli.GetOptions(cmd).JSONOutput {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), string(r.data))
			return err
		}
		logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Acknowledged: " + string(r.data))
		return nil
	}
}
