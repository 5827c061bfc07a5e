package main

import "github.com/emilythestrangee/kaen/cmd/kaen/command"

func main() {
	command.Execute()
}
