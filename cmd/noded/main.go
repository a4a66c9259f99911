// Command noded is the host-local process supervisor's entrypoint: a
// single binary that is both the daemon and the CLI that talks to it.
package main

import "github.com/noded/noded/internal/cli"

func main() {
	cli.Execute()
}
