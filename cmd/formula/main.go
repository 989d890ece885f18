// formula evaluates formulas from the command line.
package main

import "os"

func main() {
	os.Exit(Execute())
}
