package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jheapagent/internal/service"
	"github.com/jheapagent/pkg/model"
)

var maxPaths int

// gcrootsCmd represents the gcroots command
var gcrootsCmd = &cobra.Command{
	Use:   "gcroots <dump> <target>",
	Short: "Show the reference chains keeping an object alive",
	Long: `Walk the heap dump backwards from the target object and print every
chain of references from a GC root down to the object. Each chain starts
at the root (a stack local, a JNI global, a loaded class, ...) and ends at
the object's immediate holder.

The target is either a single object ID ("0x7f3a2c10" or decimal) or a
class name, which inspects every instance of that class.`,
	Args: cobra.ExactArgs(2),
	RunE: runGCRoots,
}

func init() {
	rootCmd.AddCommand(gcrootsCmd)

	gcrootsCmd.Flags().IntVarP(&maxPaths, "max-paths", "m", 0,
		"Maximum number of root paths to reconstruct per object (0 uses the configured default)")
}

func runGCRoots(cmd *cobra.Command, args []string) error {
	if maxPaths > 0 {
		cfg.Agent.MaxPaths = maxPaths
	}
	return runQueries(cmd, args[0], args[1], model.QueryGCRoots)
}

// runQueries answers one query kind for every object the target selects.
func runQueries(cmd *cobra.Command, dumpPath, target string, kind model.QueryKind) error {
	log := GetLogger()

	return withService(cmd.Context(), dumpPath, func(svc *service.Service) error {
		objects, err := svc.ResolveTargets(target)
		if err != nil {
			return err
		}
		log.Info("Inspecting %d object(s)...", len(objects))
		log.Info("")

		failed := 0
		for _, obj := range objects {
			res := svc.Inspect(cmd.Context(), service.QueryRequest{Object: obj, Kind: kind})
			svc.Formatters().Format(res, log)
			if res.Status == model.StatusFailed {
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d queries failed", failed, len(objects))
		}
		return nil
	})
}
