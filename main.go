package main

import "github.com/samuelfneumann/goatari/cmd"

func main() {
	cmd.Execute()
}
