package main

import "pianoroll/cmd"

func main() {
	cmd.Execute()
}
