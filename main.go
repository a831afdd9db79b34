package main

import "filmforge/media-library/cmd"

func main() {
	cmd.Execute()
}
