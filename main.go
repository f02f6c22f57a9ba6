package main

import "storyforge/cmd"

func main() {
	cmd.Execute()
}
