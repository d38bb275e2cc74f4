package main

import "github.com/mharding/shopfront/cmd/shopfront/cmd"

func main() {
	cmd.Execute()
}
