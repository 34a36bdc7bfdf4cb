// Command filoctl is the operator CLI of the Filo portal.
package main

import "github.com/filo-ai/portal/internal/cli"

func main() {
	cli.Execute()
}
