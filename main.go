package main

import "github.com/lowbkg/crossrate/cmd"

func main() {
	cmd.Execute()
}
