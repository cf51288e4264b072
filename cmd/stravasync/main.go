package main

import (
	"os"

	"github.com/stravasync/stravasync/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
