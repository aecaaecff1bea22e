// Command tc shares reviewed team context with coding agents.
package main

import (
	"os"

	"github.com/papapumpkin/teamcontext/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
