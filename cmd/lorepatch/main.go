package main

import (
	"os"

	"lorepatch/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
