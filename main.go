package main

import "github.com/vargulf/hvseed/cmd"

func main() {
	cmd.Execute()
}
