// The main package for the clipdl executable.
package main

import (
	"github.com/JakeFAU/clipdl/cmd"
)

func main() {
	cmd.Execute()
}
