package main

import (
	"os"

	"github.com/bsaid97/go-spatial-check/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
