package main

import "github.com/jsvoboda/photo-curator/cmd"

func main() {
	cmd.Execute()
}
