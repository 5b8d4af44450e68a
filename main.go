package main

import "github.com/nextlevelbuilder/socialagent/cmd"

func main() {
	cmd.Execute()
}
