// guardian watches the breaker control surface and opens the circuit when it
// becomes reachable from outside the host or answers without auth.
package main

import "github.com/ppiankov/breakerguard/internal/cli"

// version is set at build time with -ldflags "-X main.version=<v>".
var version = "dev"

func main() {
	cli.Execute(version)
}
