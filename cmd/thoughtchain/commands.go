package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/thoughtchain/internal/chain"
	"github.com/kalambet/thoughtchain/internal/config"
	"github.com/kalambet/thoughtchain/internal/dispatch"
)

// --- capture ---

var captureCmd = &cobra.Command{
	Use:   "capture <url>",
	Short: "Add a page to a chain",
	Long: `Add a page to a chain. Without --chain the page goes to the active
chain, or to a new one if none is active. A summary is generated in the
background.

Examples:
  thoughtchain capture https://go.dev/blog/slog --title "Structured logging"
  thoughtchain capture https://example.com --notes "compare with slog" --tags go,logging`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		notes, _ := cmd.Flags().GetString("notes")
		tagsStr, _ := cmd.Flags().GetString("tags")
		chainArg, _ := cmd.Flags().GetString("chain")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var chainID string
		if chainArg != "" {
			c, err := resolveChain(ctx, client, chainArg)
			if err != nil {
				return err
			}
			chainID = c.ID
		}

		resp, err := client.send(ctx, dispatch.Request{
			Action:  dispatch.ActionAddNode,
			ChainID: chainID,
			Node: &dispatch.NodeInput{
				Title: title,
				URL:   args[0],
				Notes: notes,
				Tags:  splitTags(tagsStr),
			},
		})
		if err != nil {
			return err
		}
		if _, err := check(resp); err != nil {
			return err
		}

		printSuccess("Captured node %s in chain %s", shortID(resp.NodeID), shortID(resp.ChainID))
		return nil
	},
}

func init() {
	captureCmd.Flags().String("title", "", "page title")
	captureCmd.Flags().String("notes", "", "notes to attach to the page")
	captureCmd.Flags().String("tags", "", "comma-separated tags")
	captureCmd.Flags().String("chain", "", "target chain ID or ID prefix (default: active chain)")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// --- chains ---

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List and manage chains",
}

var chainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chains, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		path := "/chains"
		if limit > 0 {
			path = fmt.Sprintf("/chains/recent?limit=%d", limit)
		}
		resp, err := client.call(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if _, err := check(resp); err != nil {
			return err
		}

		if len(resp.Chains) == 0 {
			fmt.Println("No chains yet.")
			return nil
		}

		var activeID string
		if active, err := client.call(ctx, http.MethodGet, "/chains/active", nil); err == nil && active.Chain != nil {
			activeID = active.Chain.ID
		}
		for _, c := range resp.Chains {
			printChainLine(os.Stdout, c, c.ID == activeID)
		}
		return nil
	},
}

var chainsShowCmd = &cobra.Command{
	Use:   "show [chain]",
	Short: "Show a chain and its nodes (default: active chain)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		c, err := resolveChain(cmd.Context(), client, optionalArg(args))
		if err != nil {
			return err
		}
		printChain(os.Stdout, c)
		return nil
	},
}

var chainsRenameCmd = &cobra.Command{
	Use:   "rename <chain> <name>",
	Short: "Rename a chain",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		c, err := resolveChain(ctx, client, args[0])
		if err != nil {
			return err
		}
		resp, err := client.call(ctx, http.MethodPatch, "/chains/"+c.ID, map[string]string{"name": name})
		if err != nil {
			return err
		}
		if _, err := check(resp); err != nil {
			return err
		}
		printSuccess("Renamed %s to %q", shortID(c.ID), strings.TrimSpace(name))
		return nil
	},
}

var chainsDeleteCmd = &cobra.Command{
	Use:   "delete <chain>",
	Short: "Delete a chain and all its nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		c, err := resolveChain(ctx, client, args[0])
		if err != nil {
			return err
		}
		if !confirm {
			printWarning("This will delete %q with %d nodes. Use --confirm to proceed.", c.Name, len(c.Nodes))
			return nil
		}

		resp, err := client.call(ctx, http.MethodDelete, "/chains/"+c.ID, nil)
		if err != nil {
			return err
		}
		if _, err := check(resp); err != nil {
			return err
		}
		printSuccess("Deleted %q", c.Name)
		return nil
	},
}

var chainsActivateCmd = &cobra.Command{
	Use:   "activate <chain>",
	Short: "Make a chain the target for new captures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		c, err := resolveChain(ctx, client, args[0])
		if err != nil {
			return err
		}
		resp, err := client.call(ctx, http.MethodPut, "/chains/active", map[string]string{"chainId": c.ID})
		if err != nil {
			return err
		}
		if _, err := check(resp); err != nil {
			return err
		}
		printSuccess("Active chain is now %q", c.Name)
		return nil
	},
}

func init() {
	chainsListCmd.Flags().Int("limit", 0, "only show the N most recently updated chains")
	chainsDeleteCmd.Flags().Bool("confirm", false, "confirm deletion")
	chainsCmd.AddCommand(chainsListCmd, chainsShowCmd, chainsRenameCmd, chainsDeleteCmd, chainsActivateCmd)
}

// --- split ---

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Start a new chain now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.call(cmd.Context(), http.MethodPost, "/chains/split", nil)
		if err != nil {
			return err
		}
		if _, err := check(resp); err != nil {
			return err
		}
		printSuccess("Started %q (%s)", resp.NewChainName, shortID(resp.NewChainID))
		return nil
	},
}

// --- notes ---

var notesCmd = &cobra.Command{
	Use:   "notes <chain> <node> <text>",
	Short: "Replace the notes of a node",
	Long: `Replace the notes of a node. Pass an empty string to clear them.

Example:
  thoughtchain notes 3f2a 9c1e "the key idea is in section 3"`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes := strings.Join(args[2:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		c, n, err := resolveNode(ctx, client, args[0], args[1])
		if err != nil {
			return err
		}
		resp, err := client.call(ctx, http.MethodPatch, nodePath(c.ID, n.ID), map[string]string{"notes": notes})
		if err != nil {
			return err
		}
		if _, err := check(resp); err != nil {
			return err
		}
		printSuccess("Updated notes on %q", truncate(n.Title, 60))
		return nil
	},
}

// --- summarize ---

var summarizeCmd = &cobra.Command{
	Use:   "summarize <chain> <node>",
	Short: "Regenerate the AI summary of a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		c, n, err := resolveNode(ctx, client, args[0], args[1])
		if err != nil {
			return err
		}
		printStep("Summarizing %s", n.URL)
		resp, err := client.call(ctx, http.MethodPost, nodePath(c.ID, n.ID)+"/summary", nil)
		if err != nil {
			return err
		}

		switch {
		case !resp.Success:
			printError("%s", resp.Error)
		case resp.Degraded:
			printWarning("AI call timed out; stored a fallback summary")
		}
		if resp.Summary != "" {
			fmt.Println(resp.Summary)
		}
		if !resp.Success {
			return fmt.Errorf("summary generation failed")
		}
		return nil
	},
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report [chain]",
	Short: "Generate or show the report for a chain (default: active chain)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		show, _ := cmd.Flags().GetBool("show")
		guidance, _ := cmd.Flags().GetString("guidance")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		c, err := resolveChain(ctx, client, optionalArg(args))
		if err != nil {
			return err
		}

		if show {
			resp, err := client.call(ctx, http.MethodGet, "/chains/"+c.ID+"/report", nil)
			if err != nil {
				return err
			}
			if _, err := check(resp); err != nil {
				return err
			}
			fmt.Println(resp.SummaryDoc)
			return nil
		}

		printStep("Generating report for %q (%d nodes)", c.Name, len(c.Nodes))
		var body any
		if guidance != "" {
			body = map[string]string{"guidance": guidance}
		}
		resp, err := client.call(ctx, http.MethodPost, "/chains/"+c.ID+"/report", body)
		if err != nil {
			return err
		}
		if _, err := check(resp); err != nil {
			return err
		}
		fmt.Println(resp.SummaryDoc)
		return nil
	},
}

func init() {
	reportCmd.Flags().Bool("show", false, "print the stored report instead of generating a new one")
	reportCmd.Flags().String("guidance", "", "extra instructions for the report")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		printStatus("Stored in", "%s", config.Location())
		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Secret keys (ai.api_key, server.token) are\n" +
		"written to the platform secret store.\n\nKeys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if key == "ai.api_key" || key == "server.token" {
			printSuccess("Stored %s", key)
		} else {
			printSuccess("Set %s = %s", key, value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- helpers ---

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func nodePath(chainID, nodeID string) string {
	return "/chains/" + url.PathEscape(chainID) + "/nodes/" + url.PathEscape(nodeID)
}

// resolveChain returns the chain whose ID equals or uniquely starts with ref.
// An empty ref means the active chain.
func resolveChain(ctx context.Context, client *apiClient, ref string) (chain.Chain, error) {
	if ref == "" {
		resp, err := client.call(ctx, http.MethodGet, "/chains/active", nil)
		if err != nil {
			return chain.Chain{}, err
		}
		if !resp.Success || resp.Chain == nil {
			return chain.Chain{}, fmt.Errorf("no active chain")
		}
		return *resp.Chain, nil
	}

	resp, err := client.call(ctx, http.MethodGet, "/chains", nil)
	if err != nil {
		return chain.Chain{}, err
	}
	if _, err := check(resp); err != nil {
		return chain.Chain{}, err
	}

	var matches []chain.Chain
	for _, c := range resp.Chains {
		if c.ID == ref {
			return c, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return chain.Chain{}, fmt.Errorf("no chain matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return chain.Chain{}, fmt.Errorf("%q matches %d chains; use a longer prefix", ref, len(matches))
	}
}

// resolveNode finds a node by ID or unique ID prefix within a chain.
func resolveNode(ctx context.Context, client *apiClient, chainRef, nodeRef string) (chain.Chain, chain.Node, error) {
	c, err := resolveChain(ctx, client, chainRef)
	if err != nil {
		return chain.Chain{}, chain.Node{}, err
	}

	var matches []chain.Node
	for _, n := range c.Nodes {
		if n.ID == nodeRef {
			return c, n, nil
		}
		if strings.HasPrefix(n.ID, nodeRef) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return c, chain.Node{}, fmt.Errorf("no node in %q matches %q", c.Name, nodeRef)
	case 1:
		return c, matches[0], nil
	default:
		return c, chain.Node{}, fmt.Errorf("%q matches %d nodes; use a longer prefix", nodeRef, len(matches))
	}
}
