package tui

import (
	"fmt"
	"strings"
	"time"
)

// slashCommand is a parsed "/name arg" input line
type slashCommand struct {
	name string
	arg  string
}

// parseCommand recognizes slash commands and the bare exit words
func parseCommand(input string) (slashCommand, bool) {
	input = strings.TrimSpace(input)
	switch input {
	case "exit", "quit":
		return slashCommand{name: "exit"}, true
	}
	if !strings.HasPrefix(input, "/") || len(input) < 2 {
		return slashCommand{}, false
	}

	name, arg, _ := strings.Cut(input[1:], " ")
	name = strings.ToLower(name)
	if name == "quit" {
		name = "exit"
	}
	return slashCommand{name: name, arg: strings.TrimSpace(arg)}, true
}

var commandHelp = []struct {
	usage string
	desc  string
}{
	{"/persona [name]", "switch persona (selector without a name)"},
	{"/reset", "clear this persona's conversation"},
	{"/export [path]", "save the conversation (.json or .md)"},
	{"/import <path>", "replace the conversation with an export"},
	{"/attach <path>", "attach an image to the next message"},
	{"/detach", "drop the pending attachment"},
	{"/copy", "copy the last reply to the clipboard"},
	{"/tone <tone>", "professional, casual, enthusiastic, concise"},
	{"/theme <theme>", "light or dark"},
	{"/accent <color>", "stone, blue, emerald, rose, amber, indigo"},
	{"/name <name>", "how the assistant addresses you"},
	{"/exit", "quit"},
}

func helpText() string {
	var sb strings.Builder
	for i, c := range commandHelp {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%-18s %s", c.usage, c.desc))
	}
	return sb.String()
}

// greeting returns the welcome line for the time of day
func greeting(now time.Time, name string) string {
	var g string
	switch h := now.Hour(); {
	case h < 12:
		g = "Good morning"
	case h < 18:
		g = "Good afternoon"
	default:
		g = "Good evening"
	}
	if name != "" {
		g += ", " + name
	}
	return g + "."
}
