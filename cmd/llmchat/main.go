// Command llmchat is a terminal client for streaming LLM chat backends.
package main

import "github.com/diogo/llmchat/internal/commands"

func main() {
	commands.Execute()
}
