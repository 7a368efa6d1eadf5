package main

import "github.com/kyanite-build/kyanite/cmd"

func main() {
	cmd.Execute()
}
