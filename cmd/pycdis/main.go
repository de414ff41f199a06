// Command pycdis compiles a handful of built-in fixture programs and
// inspects the resulting instruction sequences, either as a flat dump or
// through an interactive browser.
package main

import "github.com/ninelines/pybc/cmd/pycdis/cmd"

func main() {
	cmd.Execute()
}
