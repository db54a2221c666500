package main

import "dialogue/internal/cli"

func main() {
	cli.Execute()
}
