package main

import "github.com/sichatlabs/sichat-deploy/internal/cli"

func main() {
	cli.Execute()
}
