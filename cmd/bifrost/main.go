package main

import "github.com/aadithya-v/bifrost/cmd/bifrost/cmd"

func main() {
	cmd.Execute()
}
