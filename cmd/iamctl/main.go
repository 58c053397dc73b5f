package main

import (
	"os"

	"iamcore/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
