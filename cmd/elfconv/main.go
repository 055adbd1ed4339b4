// Command elfconv decodes ELF binary event logs to CSV and encodes
// CSV back into ELF logs.
package main

import "github.com/ssargent/elfconv/cmd/elfconv/cmd"

func main() {
	cmd.Execute()
}
