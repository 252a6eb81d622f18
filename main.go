package main

import (
	cmd "github.com/ticobot/ticobot/cmd/ticobot"
	"github.com/ticobot/ticobot/internal"
)

var log = internal.GetLogger()

func main() {
	log.Info("Starting ticobot")
	cmd.Execute()
}
