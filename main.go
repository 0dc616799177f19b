package main

import "github.com/timvw/sessionizer/cmd"

func main() {
	cmd.Execute()
}
