package main

import (
	"vasilala/cmd"
)

func main() {
	cmd.Execute()
}
