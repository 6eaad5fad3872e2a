package main

import "go-media-bot/cmd/media-bot/cmd"

func main() {
	cmd.Execute()
}
