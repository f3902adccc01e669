package main

import "fiatsend/internal/cli"

func main() {
	cli.Execute()
}
