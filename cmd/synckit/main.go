// Command synckit connects to a realtime sync server from the terminal.
package main

import "github.com/vinayprograms/synckit/internal/cli"

func main() {
	cli.Execute()
}
