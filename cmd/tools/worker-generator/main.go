// cmd/tools/worker-generator/main.go
package main

import (
	"fmt"
	"os"

	"investlink-workers/pkg/registry"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		activityID   string
		outputDir    string
		registryPath string
		modulePath   string
		force        bool
	)

	cmd := &cobra.Command{
		Use:          "worker-generator",
		Short:        "Scaffold a job worker package from its activity registry entry",
		Example:      "  worker-generator --activity get-smart-match --output ./internal/workers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(registryPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			activity, err := reg.Get(activityID)
			if err != nil {
				return err
			}

			files, err := Generate(NewWorkerData(*activity, modulePath), outputDir, force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range files {
				fmt.Fprintf(out, "generated %s\n", f)
			}
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. implement execute in handler.go")
			fmt.Fprintln(out, "  2. register the worker in cmd/worker-manager/workers.go")
			fmt.Fprintln(out, "  3. add a workers entry to configs/config.yaml")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&activityID, "activity", "", "activity id from the registry (e.g. get-smart-match)")
	f.StringVar(&outputDir, "output", "./internal/workers", "root directory for generated workers")
	f.StringVar(&registryPath, "registry", "configs/activity-registry.json", "path to the activity registry")
	f.StringVar(&modulePath, "module", "investlink-workers", "module path used in generated imports")
	f.BoolVar(&force, "force", false, "overwrite an existing worker directory")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}
