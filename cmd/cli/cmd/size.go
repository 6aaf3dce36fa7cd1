package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jheapagent/pkg/model"
)

// sizeCmd represents the size command
var sizeCmd = &cobra.Command{
	Use:   "size <dump> <target>",
	Short: "Estimate how many bytes an object retains",
	Long: `Walk the heap dump forwards from the target object and sum the shallow
sizes of everything reachable from it. The estimate counts every object the
target keeps reachable, including objects that are also reachable through
other holders.

The target is either a single object ID ("0x7f3a2c10" or decimal) or a
class name, which inspects every instance of that class.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQueries(cmd, args[0], args[1], model.QuerySize)
	},
}

func init() {
	rootCmd.AddCommand(sizeCmd)
}
