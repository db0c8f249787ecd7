// Command dland is a terminal chat client with personas and image understanding.
package main

import "github.com/diogo/dland/internal/commands"

func main() {
	commands.Execute()
}
