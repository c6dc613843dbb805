package main

import "npbc-dashboard/internal/cli"

func main() {
	cli.Execute()
}
