// Command stockroom runs the stock room dashboard, API and maintenance commands.
package main

import (
	"context"
	"os"

	"stockroom/internal/cli"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
