package main

import "github.com/custodia-labs/agrafes/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
