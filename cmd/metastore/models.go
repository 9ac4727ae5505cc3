package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// modelInfo mirrors the server's model response.
type modelInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	License     string    `json:"license"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
}

type modelPage struct {
	Total int         `json:"total"`
	Items []modelInfo `json:"items"`
}

// versionInfo mirrors the server's model version response.
type versionInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Number  int       `json:"number"`
	Stage   string    `json:"stage"`
	Created time.Time `json:"created"`
}

type versionPage struct {
	Total int           `json:"total"`
	Items []versionInfo `json:"items"`
}

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage registered models",
		Long:  "Register models, list them, and manage their versions and stages.",
	}

	cmd.AddCommand(newModelListCmd())
	cmd.AddCommand(newModelRegisterCmd())
	cmd.AddCommand(newModelDeleteCmd())
	cmd.AddCommand(newModelVersionCmd())

	return cmd
}

func newModelListCmd() *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models in a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/models?workspace_id="+workspaceID, nil)
			if err != nil {
				return err
			}
			var page modelPage
			if err := json.Unmarshal(body, &page); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}

			format, err := parseRenderFormat(outputFormat())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(page.Items))
			for _, m := range page.Items {
				rows = append(rows, []string{m.ID, m.Name, m.License})
			}
			return render(os.Stdout, format, page, []string{"ID", "NAME", "LICENSE"}, rows)
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace ID (required)")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func newModelRegisterCmd() *cobra.Command {
	var workspaceID, license, description string

	cmd := &cobra.Command{
		Use:   "register NAME",
		Short: "Register a new model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("POST", "/api/v1/models", map[string]any{
				"name":         args[0],
				"workspace_id": workspaceID,
				"license":      license,
				"description":  description,
			})
			if err != nil {
				return err
			}
			var created modelInfo
			if err := json.Unmarshal(body, &created); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			fmt.Printf("Model %q registered (%s)\n", created.Name, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace ID (required)")
	cmd.Flags().StringVar(&license, "license", "", "Model license")
	cmd.Flags().StringVar(&description, "description", "", "Model description")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func newModelDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a model and all its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := globalClient.doRequest("DELETE", "/api/v1/models/"+args[0], nil); err != nil {
				return err
			}
			fmt.Printf("Model %s deleted\n", args[0])
			return nil
		},
	}
	return cmd
}

func newModelVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Manage model versions",
	}

	cmd.AddCommand(newVersionCreateCmd())
	cmd.AddCommand(newVersionListCmd())
	cmd.AddCommand(newVersionPromoteCmd())

	return cmd
}

func newVersionCreateCmd() *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "create MODEL_ID",
		Short: "Create a new model version",
		Long:  "Create a version with the next free number. Unnamed versions use their number as name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("POST", "/api/v1/models/"+args[0]+"/versions", map[string]any{
				"name":        name,
				"description": description,
			})
			if err != nil {
				return err
			}
			var created versionInfo
			if err := json.Unmarshal(body, &created); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			fmt.Printf("Version %q created (number %d, %s)\n", created.Name, created.Number, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Version name (defaults to the version number)")
	cmd.Flags().StringVar(&description, "description", "", "Version description")
	return cmd
}

func newVersionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list MODEL_ID",
		Short: "List versions of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/models/"+args[0]+"/versions", nil)
			if err != nil {
				return err
			}
			var page versionPage
			if err := json.Unmarshal(body, &page); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}

			format, err := parseRenderFormat(outputFormat())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(page.Items))
			for _, v := range page.Items {
				rows = append(rows, []string{strconv.Itoa(v.Number), v.ID, v.Name, v.Stage})
			}
			return render(os.Stdout, format, page, []string{"NUMBER", "ID", "NAME", "STAGE"}, rows)
		},
	}
	return cmd
}

func newVersionPromoteCmd() *cobra.Command {
	var stage, newName string
	var force bool

	cmd := &cobra.Command{
		Use:   "promote VERSION_ID",
		Short: "Move a model version to a stage",
		Long: `Move a model version to the given stage.

Staging and production hold at most one version per model. When the
target stage is occupied the command fails and names the occupant;
rerun with --force to archive it and take the stage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"stage": stage,
				"force": force,
			}
			if newName != "" {
				payload["name"] = newName
			}

			body, err := globalClient.doRequest("PUT", "/api/v1/model_versions/"+args[0]+"/stage", payload)
			if err != nil {
				var apiErr *apiError
				if errors.As(err, &apiErr) && apiErr.Code == "stage_occupied" {
					occupant := apiErr.OccupantName
					if occupant == "" {
						occupant = apiErr.OccupantID
					}
					return fmt.Errorf("stage %q is held by version %s; rerun with --force to archive it", stage, occupant)
				}
				return err
			}
			var updated versionInfo
			if err := json.Unmarshal(body, &updated); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			fmt.Printf("Version %q is now in stage %q\n", updated.Name, updated.Stage)
			return nil
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Target stage: staging, production, archived or \"\" (required)")
	cmd.Flags().StringVar(&newName, "name", "", "Rename the version in the same transition")
	cmd.Flags().BoolVar(&force, "force", false, "Archive the current stage occupant if there is one")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}
