// Command hublinkd runs the HubLink chat server.
package main

import (
	_ "go.uber.org/automaxprocs" // sizes GOMAXPROCS to the container/cgroup before anything else runs

	"github.com/hublinkchat/hublink/cmd/hublinkd/commands"
)

func main() {
	commands.Execute()
}
