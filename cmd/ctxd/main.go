package main

import (
	"github.com/meridian-labs/ctxd/internal/adapters/driving/cli"
)

func main() {
	cli.Execute()
}
