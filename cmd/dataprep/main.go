// Package main provides the dataprep CLI.
package main

import "github.com/mesh-intelligence/dataprep/internal/cli"

func main() {
	cli.Execute()
}
