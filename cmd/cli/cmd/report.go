package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jheapagent/internal/host"
	"github.com/jheapagent/internal/service"
	"github.com/jheapagent/pkg/model"
)

var (
	// Report command flags
	reportOutput  string
	reportQueries string
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report <dump> <target>...",
	Short: "Run a batch inspection and bundle the results into a report",
	Long: `Answer the configured queries for every target and bundle the outcomes
into a single report. By default each object is asked both questions: which
reference chains keep it alive, and how many bytes it retains.

Targets are object IDs ("0x7f3a2c10" or decimal) or class names; a class
name selects every instance of that class. With persistence or storage
configured, the report is also archived and the rendered JSON uploaded.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "",
		"Write the report JSON to this file")
	reportCmd.Flags().StringVarP(&reportQueries, "queries", "q", "gc_roots,size",
		"Comma-separated query kinds to run: gc_roots, size")
}

func runReport(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	kinds, err := parseQueryKinds(reportQueries)
	if err != nil {
		return err
	}

	return withService(cmd.Context(), args[0], func(svc *service.Service) error {
		var objects []host.ObjectRef
		seen := make(map[host.ObjectRef]bool)
		for _, target := range args[1:] {
			refs, err := svc.ResolveTargets(target)
			if err != nil {
				return fmt.Errorf("target %q: %w", target, err)
			}
			for _, ref := range refs {
				if !seen[ref] {
					seen[ref] = true
					objects = append(objects, ref)
				}
			}
		}

		report, err := svc.InspectBatch(cmd.Context(),
			service.BuildRequests(objects, kinds...))
		if err != nil {
			return err
		}

		log.Info("")
		svc.Formatters().FormatReport(report, log)

		if reportOutput != "" {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render report: %w", err)
			}
			if err := os.WriteFile(reportOutput, data, 0644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			log.Info("")
			log.Info("Report written to %s", reportOutput)
		}

		return nil
	})
}

func parseQueryKinds(s string) ([]model.QueryKind, error) {
	var kinds []model.QueryKind
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "gc_roots", "gcroots":
			kinds = append(kinds, model.QueryGCRoots)
		case "size":
			kinds = append(kinds, model.QuerySize)
		case "":
		default:
			return nil, fmt.Errorf("unknown query kind: %s (valid: gc_roots, size)", part)
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no query kinds selected")
	}
	return kinds, nil
}
