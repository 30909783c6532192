package main

import "toolshed/cmd"

func main() {
	cmd.Execute()
}
