package main

import "github.com/Norgate-AV/gqlpipe/cmd"

func main() {
	cmd.Execute()
}
