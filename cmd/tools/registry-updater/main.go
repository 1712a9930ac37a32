// cmd/tools/registry-updater/main.go
package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"investlink-workers/pkg/registry"

	"github.com/spf13/cobra"
)

const defaultRegistryPath = "configs/activity-registry.json"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var registryPath string

	root := &cobra.Command{
		Use:   "registry-updater",
		Short: "Maintain the activity registry that describes every job worker",
		Example: `  registry-updater add --id get-smart-match --display-name "Get Smart Match" --description "Scores one pair" --category matching --task-type get-smart-match
  registry-updater update --id get-smart-match --field status --value verified
  registry-updater validate --path configs/activity-registry.json
  registry-updater list`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&registryPath, "path", defaultRegistryPath, "path to the registry file")

	root.AddCommand(
		newAddCmd(&registryPath),
		newUpdateCmd(&registryPath),
		newValidateCmd(&registryPath),
		newListCmd(&registryPath),
	)
	return root
}

func newAddCmd(path *string) *cobra.Command {
	activity := registry.Activity{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new activity to the registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadOrNew(*path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			activity.InputSchema = map[string]interface{}{}
			activity.OutputSchema = map[string]interface{}{}
			activity.ErrorCodes = []string{}
			activity.Workflows = []string{}
			activity.Tags = []string{}
			if err := reg.Add(activity); err != nil {
				return err
			}
			if err := reg.Save(*path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added activity: %s\n", activity.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&activity.ID, "id", "", "activity id (e.g. get-smart-match)")
	f.StringVar(&activity.DisplayName, "display-name", "", "display name")
	f.StringVar(&activity.Description, "description", "", "description")
	f.StringVar(&activity.Category, "category", "", "category (e.g. matching)")
	f.StringVar(&activity.TaskType, "task-type", "", "Zeebe job type")
	f.StringVar(&activity.Version, "version", "1.0.0", "activity version")
	f.StringVar(&activity.ImplementationStatus, "status", registry.StatusPlanned, "planned, in-progress, completed or verified")
	f.StringVar(&activity.Timeout, "timeout", "10s", "job timeout")
	f.IntVar(&activity.Retries, "retries", 0, "retry budget")
	for _, name := range []string{"id", "display-name", "description", "category", "task-type"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newUpdateCmd(path *string) *cobra.Command {
	var id, field, value string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update one field of an existing activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Update(id, field, value); err != nil {
				return err
			}
			if err := reg.Save(*path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated activity %s, field %s to %s\n", id, field, value)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&id, "id", "", "activity id to update")
	f.StringVar(&field, "field", "", "field to update (status, version, displayName, description, category, taskType, timeout, retries)")
	f.StringVar(&value, "value", "", "new value")
	for _, name := range []string{"id", "field", "value"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newValidateCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the registry file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Validate(); err != nil {
				return fmt.Errorf("registry validation failed:\n%w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}
}

func newListCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered activities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK TYPE\tCATEGORY\tSTATUS\tVERSION\tRETRIES")
			for _, a := range reg.Activities {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", a.TaskType, a.Category, a.ImplementationStatus, a.Version, a.Retries)
			}
			return w.Flush()
		},
	}
}
