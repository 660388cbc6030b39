package main

import "github.com/atoreson/schemadiff/cmd"

func main() {
	cmd.Execute()
}
