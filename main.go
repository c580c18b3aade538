package main

import (
	"github.com/futureof723/SpaceCowBot/cmd"
)

func main() {
	cmd.Execute()
}
