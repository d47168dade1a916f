// Package cmd assembles the invoicedash command tree.
package cmd

import (
	"github.com/grovetools/invoicedash/cli"
	"github.com/grovetools/invoicedash/version"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the invoicedash command with every subcommand.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"invoicedash",
		"Real-time invoice dashboard and development event server",
	)
	cli.SetVersionTemplate(root, version.GetInfo())

	root.AddCommand(NewMockServerCmd())
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewEmitCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewAuthCmd())
	root.AddCommand(cli.NewVersionCommand("invoicedash"))

	cli.ApplyStyledHelpRecursive(root)
	return root
}
