package main

import "github.com/clientauth/sessionkit/cmd/sessionkit/cmd"

func main() {
	cmd.Execute()
}
