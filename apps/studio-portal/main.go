package main

import "github.com/atelierlabs/studio-portal/internal/cli"

func main() {
	cli.Execute()
}
