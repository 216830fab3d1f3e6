// Command projectcore drives the Project core from the command line.
package main

import "github.com/langservice/projectcore/cmd/projectcore"

func main() {
	projectcore.Execute()
}
