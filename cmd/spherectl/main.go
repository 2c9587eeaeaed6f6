package main

import "github.com/mcoot/mysphere/internal/cli"

func main() {
	cli.Execute()
}
