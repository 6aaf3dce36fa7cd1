package main

import "github.com/jheapagent/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
