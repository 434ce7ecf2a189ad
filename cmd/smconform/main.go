package main

import "github.com/smlab/smconform/internal/cli"

func main() {
	cli.Execute()
}
