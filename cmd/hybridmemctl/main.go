// Command hybridmemctl is a thin CLI wrapper around the memory core: enough
// to smoke-test the storage, embedding, and retrieval wiring from a
// terminal without a full MCP client.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/hybridmem/cmd/hybridmemctl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
