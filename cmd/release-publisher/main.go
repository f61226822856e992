package main

import "github.com/arkmeter/release-publisher/cmd/release-publisher/cmd"

func main() {
	cmd.Execute()
}
