package main

import "github.com/N8WM/cs-bot-v2/cmd"

func main() {
	cmd.Execute()
}
