// Command archivist is the single executable: ingest sources, classify,
// archive, index, export, and manage workflows.
package main

import (
	"os"

	"github.com/juanre/mail-flow/cmd/archivist/commands"
)

func main() {
	os.Exit(commands.Main(os.Args))
}
