// Command rrdt is the out-of-scope reference driver for the RRDT library:
// a file-transfer demo wired the way
// original_source/rrdt-cli/src/{main,transport/send,transport/recv}.rs
// wires its send/recv binaries, expressed with cobra/pflag per the
// ambient CLI stack.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.New()
	root := &cobra.Command{
		Use:   "rrdt",
		Short: "RRDT file-transfer reference client/server",
	}
	root.AddCommand(newSendCmd(log), newRecvCmd(log))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
