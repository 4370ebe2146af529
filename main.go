package main

import "github.com/Lhcfl/whatdidwesaybot/cmd"

func main() {
	cmd.Execute()
}
