// main.go - Application entry point
package main

import "github.com/akkana/pytopo/cmd"

func main() {
	cmd.Execute()
}
