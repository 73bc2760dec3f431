package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/edgegate-io/edgegate/internal/config"
	"github.com/edgegate-io/edgegate/internal/fancy"
	"github.com/urfave/cli/v3"
)

var validateCmd = &cli.Command{
	Name:    "validate",
	Aliases: []string{"lint"},
	Usage:   "Validate a configuration file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the configuration file",
		},
		&cli.BoolFlag{
			Name:    "tree",
			Aliases: []string{"t"},
			Usage:   "Show detailed tree view of the validated configuration",
		},
	},
	Suggest: true,
	Action:  validateAction,
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		if cmd.Args().Len() < 1 {
			return fmt.Errorf(
				"config file path required (use the --config flag, or provide the config file as positional argument)",
			)
		}
		configPath = cmd.Args().Get(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("Configuration file %s is valid\n", configPath)

	if cmd.Bool("tree") {
		fmt.Println(renderConfigTree(cfg))
		return nil
	}

	fmt.Println(renderConfigSummary(configPath, cfg))
	return nil
}

// renderConfigSummary creates a formatted summary string for the configuration
func renderConfigSummary(path string, cfg *config.Config) string {
	var summary strings.Builder

	summary.WriteString("\nConfig Summary:\n")
	summary.WriteString(fmt.Sprintf("- Path: %s\n", path))
	summary.WriteString(fmt.Sprintf("- Connector types: %d\n", len(cfg.ConnectorTypes)))
	summary.WriteString(fmt.Sprintf("- Cloud connectors: %d\n", len(cfg.CloudConnectors)))
	summary.WriteString(fmt.Sprintf("- Device connectors: %d\n", len(cfg.DeviceConnectors)))
	summary.WriteString("\nUse --tree for a more detailed view of the config.")

	return summary.String()
}

// renderConfigTree renders the document as a styled tree.
func renderConfigTree(cfg *config.Config) string {
	root := fancy.Tree().Root(fancy.RootStyle.Render("edgegate config"))

	types := fancy.BranchNode("Connector Types", fmt.Sprintf("(%d)", len(cfg.ConnectorTypes)))
	for _, name := range sortedKeys(cfg.ConnectorTypes) {
		types.Child(fmt.Sprintf("%s: %s",
			fancy.TypeStyle.Render(name),
			fancy.InfoStyle.Render(cfg.ConnectorTypes[name])))
	}
	root.Child(types)

	root.Child(sectionNode("Cloud Connectors", cfg.CloudConnectors, fancy.CloudStyle))
	root.Child(sectionNode("Device Connectors", cfg.DeviceConnectors, fancy.DeviceStyle))

	return root.String()
}

func sectionNode(title string, section map[string]config.Entry, style lipgloss.Style) any {
	node := fancy.BranchNode(title, fmt.Sprintf("(%d)", len(section)))
	for _, id := range sortedKeys(section) {
		node.Child(fmt.Sprintf("%s %s",
			style.Render(id),
			fancy.InfoStyle.Render("["+section[id].Type+"]")))
	}
	return node
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
