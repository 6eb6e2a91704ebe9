package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/link-archiver/internal/links"
)

func newLinkTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link-test [file]",
		Short: "Print the links found in one document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			path := app.Config.Docs.Sample
			if len(args) == 1 {
				path = args[0]
			}
			found, err := links.FromFile(path)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), found)
		},
	}
}

func newFolderTestCmd() *cobra.Command {
	var suffix string
	cmd := &cobra.Command{
		Use:   "folder-test [dir]",
		Short: "List the entries of the documents folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			dir := app.Config.Docs.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			files, err := links.ListFiles(dir, suffix)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), files)
		},
	}
	cmd.Flags().StringVar(&suffix, "suffix", "", `only list names ending in suffix ("" or "*" lists everything)`)
	return cmd
}

func newLinksFolderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links-folder [dir]",
		Short: "Print the links of every document, keyed by document name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			dir := app.Config.Docs.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			byDoc, err := links.FromDirectory(dir, app.Config.Docs.Suffix)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), byDoc)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
