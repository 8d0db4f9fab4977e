package main

import "github.com/p4cket/reqpad/apps/server/cmd"

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd.Execute(version, buildTime)
}
