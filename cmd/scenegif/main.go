package main

import "github.com/forPelevin/scenegif/internal/cli"

func main() {
	cli.Main()
}
