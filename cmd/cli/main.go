package main

import "github.com/keurnel/x64enc/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
