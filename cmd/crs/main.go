// Command crs searches a git repository's commit history for the commit
// that introduced a regression.
package main

import (
	"os"

	"github.com/apfelbeet/crs/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
