package main

import (
	"github.com/0xPolygon/polygon-gateway/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
