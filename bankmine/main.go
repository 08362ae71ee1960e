package main

import "github.com/plenert/bankmine/bankmine/cmd"

func main() {
	cmd.Execute()
}
