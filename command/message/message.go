package message

import (
	"github.com/spf13/cobra"
)

const (
	dataFlag    = "data"
	payloadFlag = "payload"
)

// GetCommand returns the message command
func GetCommand() *cobra.Command {
	messageCmd := &cobra.Command{
		Use:   "message",
		Short: "Top level command for sending, receiving and inspecting messages",
	}

	messageCmd.AddCommand(
		getReceiveCommand(),
		getSendCommand(),
		getPurgeCommand(),
		getShowCommand(),
	)

	return messageCmd
}
