package main

import "github.com/ZacxDev/sitegen/cmd"

func main() {
	cmd.Execute()
}
