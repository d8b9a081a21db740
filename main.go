package main

import "github.com/Tiliavir/kv-time-tracker/cmd"

func main() {
	cmd.Execute()
}
