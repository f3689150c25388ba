package main

import "github.com/qrave1/StageLive/cmd"

func main() {
	cmd.Execute()
}
