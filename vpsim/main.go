// Command vpsim runs platforms described in YAML.
package main

import "github.com/sarchlab/vpsim/vpsim/cmd"

func main() {
	cmd.Execute()
}
