// Package main runs the coherence simulator.
package main

import "github.com/sarchlab/coherence/coherence/cmd"

func main() {
	cmd.Execute()
}
