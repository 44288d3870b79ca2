package main

import "ragengine/internal/cli"

func main() {
	cli.Execute()
}
