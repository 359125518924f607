package main

import "github.com/jmwhit/docdriver/cmd"

func main() {
	cmd.Execute()
}
