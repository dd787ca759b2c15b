package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case runMode:
		runMain(cli.Run)
	case infosMode:
		infosMain(cli.Infos)
	case versionMode:
		fmt.Println("gocart", version)
	}
}
