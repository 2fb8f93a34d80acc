package main

import (
	"os"

	"github.com/garyjia/expense-approval/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
