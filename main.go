package main

import "github.com/RyanBlaney/sonido-radar/cmd"

func main() {
	cmd.Execute()
}
