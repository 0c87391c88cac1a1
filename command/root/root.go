package root

import (
	"fmt"
	"os"

	"github.com/0xPolygon/polygon-gateway/command/forwarding"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/command/hook"
	"github.com/0xPolygon/polygon-gateway/command/message"
	"github.com/0xPolygon/polygon-gateway/command/queue"
	"github.com/0xPolygon/polygon-gateway/command/recovery"
	"github.com/0xPolygon/polygon-gateway/command/relayer"
	"github.com/0xPolygon/polygon-gateway/command/routers"
	"github.com/0xPolygon/polygon-gateway/command/server"
	"github.com/0xPolygon/polygon-gateway/command/version"
	"github.com/spf13/cobra"
)

type RootCommand struct {
	baseCmd *cobra.Command
}

func NewRootCommand() *RootCommand {
	rootCommand := &RootCommand{
		baseCmd: &cobra.Command{
			Use:   "polygon-gateway",
			Short: "Polygon Gateway relays messages between domains under a quorum of routers",
		},
	}

	helper.RegisterJSONOutputFlag(rootCommand.baseCmd)
	helper.RegisterConfigFlags(rootCommand.baseCmd)

	rootCommand.registerSubCommands()

	return rootCommand
}

func (rc *RootCommand) registerSubCommands() {
	rc.baseCmd.AddCommand(
		version.GetCommand(),
		server.GetCommand(),
		routers.GetCommand(),
		relayer.GetCommand(),
		hook.GetCommand(),
		forwarding.GetCommand(),
		message.GetCommand(),
		queue.GetCommand(),
		recovery.GetCommand(),
	)
}

func (rc *RootCommand) Execute() {
	if err := rc.baseCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
