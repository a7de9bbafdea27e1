package main

import "github.com/leandrodaf/chordpartner/internal/cli"

func main() {
	cli.Execute()
}
