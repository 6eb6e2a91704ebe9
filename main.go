// The main package for the link-archiver executable.
package main

import (
	"github.com/JakeFAU/link-archiver/cmd"
)

func main() {
	cmd.Execute()
}
