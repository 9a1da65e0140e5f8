package main

import "github.com/callscope/callscope/internal/cli"

func main() {
	cli.Execute()
}
