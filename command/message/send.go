package message

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/gateway"
	gwmessage "github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/helper/hex"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/spf13/cobra"
)

var sendParams struct {
	sender   string
	domain   string
	payloads []string
}

func getSendCommand() *cobra.Command {
	sendCmd := &cobra.Command{
		Use: "send",
		Short: "Sends payloads to a destination domain through its routers. " +
			"Several payloads are batched into packs",
		Run: runSendCommand,
	}

	helper.RegisterCallerFlag(sendCmd, &sendParams.sender)

	sendCmd.Flags().StringVar(&sendParams.domain, helper.DomainFlag, "", "the destination domain")
	sendCmd.Flags().StringArrayVar(&sendParams.payloads, payloadFlag, nil, "the hex encoded payload, repeat to batch")

	_ = sendCmd.MarkFlagRequired(helper.DomainFlag)
	_ = sendCmd.MarkFlagRequired(payloadFlag)

	return sendCmd
}

func runSendCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	sender, err := helper.ParseAddress(helper.CallerFlag, sendParams.sender)
	if err != nil {
		outputter.SetError(err)

		return
	}

	domain, err := helper.ParseDomain(helper.DomainFlag, sendParams.domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	msgs := make([]*gwmessage.Message, len(sendParams.payloads))

	for i, raw := range sendParams.payloads {
		payload, err := hex.DecodeHex(raw)
		if err != nil {
			outputter.SetError(fmt.Errorf("invalid --%s #%d: %w", payloadFlag, i, err))

			return
		}

		msgs[i] = gwmessage.NewPayload(payload)
	}

	// built up front, so that an oversized batch fails before a batch window is opened
	dispatched, err := dispatchedMessage(msgs)
	if err != nil {
		outputter.SetError(fmt.Errorf("invalid --%s: %w", payloadFlag, err))

		return
	}

	gw, closeFn, err := helper.OpenGateway(cmd)
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer closeFn()

	if err := send(context.Background(), gw, sender, domain, msgs); err != nil {
		outputter.SetError(fmt.Errorf("failed to send message: %w", err))

		return
	}

	res := &sendResult{
		Domain:     domain,
		Dispatched: dispatched.Hash(),
		Hashes:     make([]types.Hash, len(msgs)),
	}
	for i, msg := range msgs {
		res.Hashes[i] = msg.Hash()
	}

	outputter.SetCommandResult(res)
}

// dispatchedMessage returns the message the routers carry for msgs: the message itself
// when there is one, the pack of all of them otherwise
func dispatchedMessage(msgs []*gwmessage.Message) (*gwmessage.Message, error) {
	if len(msgs) == 1 {
		return msgs[0], nil
	}

	pack := gwmessage.Empty()

	for _, msg := range msgs {
		if err := pack.PackWith(msg); err != nil {
			return nil, err
		}
	}

	return pack, nil
}

func send(ctx context.Context, gw *gateway.Gateway, sender types.Address, domain types.Domain,
	msgs []*gwmessage.Message) error {
	if len(msgs) == 1 {
		return gw.Handle(ctx, sender, domain, msgs[0])
	}

	if err := gw.StartBatchMessage(sender); err != nil {
		return err
	}

	for _, msg := range msgs {
		if err := gw.Handle(ctx, sender, domain, msg); err != nil {
			return err
		}
	}

	return gw.EndBatchMessage(ctx, sender)
}
