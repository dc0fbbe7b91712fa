package main

import "nexus/cmd"

func main() {
	cmd.Execute()
}
