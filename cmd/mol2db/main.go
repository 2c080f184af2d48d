package main

import (
	"github.com/moltools/mol2db/cmd/mol2db/cmd"
)

func main() {
	cmd.Execute()
}
