package queue

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/gateway"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/spf13/cobra"
)

const limitFlag = "limit"

var params queueParams

type queueParams struct {
	caller string
	nonce  uint64
	limit  int
}

// GetCommand returns the queue command
func GetCommand() *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Top level command for executing and inspecting admitted messages",
	}

	queueCmd.AddCommand(
		getProcessCommand(
			"process",
			"Executes a queued message. Failures are moved to the failed queue",
			(*gateway.Gateway).ProcessMessage,
		),
		getProcessCommand(
			"process-failed",
			"Retries a message of the failed queue",
			(*gateway.Gateway).ProcessFailedMessage,
		),
		getShowCommand(),
	)

	return queueCmd
}

type processFn func(gw *gateway.Gateway, ctx context.Context, caller types.Address, nonce types.Nonce) error

func getProcessCommand(use, short string, fn processFn) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, _ []string) {
			runProcessCommand(cmd, fn)
		},
	}

	helper.RegisterCallerFlag(cmd, &params.caller)

	cmd.Flags().Uint64Var(&params.nonce, helper.NonceFlag, 0, "the nonce of the message")

	_ = cmd.MarkFlagRequired(helper.NonceFlag)

	return cmd
}

func getShowCommand() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Shows the queued and the failed messages",
		Run:   runShowCommand,
	}

	showCmd.Flags().IntVar(&params.limit, limitFlag, 0, "the maximum number of queued messages to show, 0 for all")

	return showCmd
}

func runProcessCommand(cmd *cobra.Command, fn processFn) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	caller, err := helper.ParseAddress(helper.CallerFlag, params.caller)
	if err != nil {
		outputter.SetError(err)

		return
	}

	gw, closeFn, err := helper.OpenGateway(cmd)
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer closeFn()

	nonce := types.Nonce(params.nonce)

	if err := fn(gw, context.Background(), caller, nonce); err != nil {
		outputter.SetError(fmt.Errorf("failed to process message %d: %w", nonce, err))

		return
	}

	outputter.SetCommandResult(&processResult{Nonce: nonce})
}

func runShowCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	gw, closeFn, err := helper.OpenGateway(cmd)
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer closeFn()

	queued, err := gw.QueuedMessages(params.limit)
	if err != nil {
		outputter.SetError(err)

		return
	}

	failed, err := gw.FailedMessages()
	if err != nil {
		outputter.SetError(err)

		return
	}

	lastNonce, err := gw.LastNonce()
	if err != nil {
		outputter.SetError(err)

		return
	}

	res := &showResult{
		LastNonce: lastNonce,
		Queued:    make([]entry, len(queued)),
		Failed:    make([]entry, len(failed)),
	}

	for i, e := range queued {
		res.Queued[i] = entry{Nonce: e.Nonce, Domain: e.Domain, Size: len(e.Message)}
	}

	for i, e := range failed {
		res.Failed[i] = entry{
			Nonce:    e.Nonce,
			Domain:   e.Domain,
			Size:     len(e.Message),
			Error:    e.Error,
			Attempts: e.Attempts,
		}
	}

	outputter.SetCommandResult(res)
}
