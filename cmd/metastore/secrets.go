package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// secretInfo mirrors the server's secret response.
type secretInfo struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Scope   string            `json:"scope"`
	Values  map[string]string `json:"values,omitempty"`
	Created time.Time         `json:"created"`
	User    *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user,omitempty"`
}

type secretPage struct {
	Total int          `json:"total"`
	Items []secretInfo `json:"items"`
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets",
		Long:  "Create, list, inspect, update and delete secrets.",
	}

	cmd.AddCommand(newSecretListCmd())
	cmd.AddCommand(newSecretCreateCmd())
	cmd.AddCommand(newSecretGetCmd())
	cmd.AddCommand(newSecretDeleteCmd())

	return cmd
}

func newSecretListCmd() *cobra.Command {
	var name, scope, workspaceID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible secrets",
		Long:  "List workspace secrets of your workspaces plus your own private secrets. Values are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if name != "" {
				query.Set("name", name)
			}
			if scope != "" {
				query.Set("scope", scope)
			}
			if workspaceID != "" {
				query.Set("workspace_id", workspaceID)
			}
			path := "/api/v1/secrets"
			if len(query) > 0 {
				path += "?" + query.Encode()
			}

			body, err := globalClient.doRequest("GET", path, nil)
			if err != nil {
				return err
			}
			var page secretPage
			if err := json.Unmarshal(body, &page); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}

			format, err := parseRenderFormat(outputFormat())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(page.Items))
			for _, s := range page.Items {
				owner := ""
				if s.User != nil {
					owner = s.User.Name
				}
				rows = append(rows, []string{s.ID, s.Name, s.Scope, owner})
			}
			return render(os.Stdout, format, page, []string{"ID", "NAME", "SCOPE", "OWNER"}, rows)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Filter by exact name")
	cmd.Flags().StringVar(&scope, "scope", "", "Filter by scope (workspace or user)")
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Filter by workspace ID")
	return cmd
}

func newSecretCreateCmd() *cobra.Command {
	var scope, workspaceID string
	var values []string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a secret",
		Long: `Create a secret in the given workspace.

Workspace-scoped secrets share one name slot per workspace; user-scoped
secrets get a private slot, so your "aws" does not collide with the
workspace's "aws".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := map[string]string{}
			for _, kv := range values {
				key, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --value %q (expected KEY=VALUE)", kv)
				}
				parsed[key] = value
			}

			body, err := globalClient.doRequest("POST", "/api/v1/secrets", map[string]any{
				"name":         args[0],
				"scope":        scope,
				"workspace_id": workspaceID,
				"values":       parsed,
			})
			if err != nil {
				return err
			}
			var created secretInfo
			if err := json.Unmarshal(body, &created); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			fmt.Printf("Secret %q created (%s, scope %s)\n", created.Name, created.ID, created.Scope)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "workspace", "Secret scope: workspace or user")
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace ID (required)")
	cmd.Flags().StringArrayVar(&values, "value", nil, "Secret value as KEY=VALUE (repeatable)")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func newSecretGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show a secret including its values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/secrets/"+args[0], nil)
			if err != nil {
				return err
			}
			var secret secretInfo
			if err := json.Unmarshal(body, &secret); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}

			format, err := parseRenderFormat(outputFormat())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(secret.Values))
			for key, value := range secret.Values {
				rows = append(rows, []string{key, value})
			}
			return render(os.Stdout, format, secret, []string{"KEY", "VALUE"}, rows)
		},
	}
	return cmd
}

func newSecretDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := globalClient.doRequest("DELETE", "/api/v1/secrets/"+args[0], nil); err != nil {
				return err
			}
			fmt.Printf("Secret %s deleted\n", args[0])
			return nil
		},
	}
	return cmd
}
