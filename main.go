package main

import "github.com/bsecurity/rosterwatch/cmd"

func main() {
	cmd.Execute()
}
