package main

import "knowfed/kfn/cmd"

func main() {
	cmd.Execute()
}
