package main

import (
	"os"

	"github.com/Alligator/jqawk/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
