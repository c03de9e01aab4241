package main

import "github.com/KaramelBytes/ndviloom-cli/cmd"

func main() {
	cmd.Execute()
}
