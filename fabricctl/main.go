// Package main is the entry point of fabricctl.
package main

import "github.com/sarchlab/axifabric/fabricctl/cmd"

func main() {
	cmd.Execute()
}
