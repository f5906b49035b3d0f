package main

import "github.com/shl518/vchat/cmd"

func main() {
	cmd.Execute()
}
