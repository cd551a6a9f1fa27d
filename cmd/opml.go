package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/feedrewrite/internal/sources"
)

func importOPMLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-opml <file>",
		Short: "Merge the feeds of an OPML file into the feed list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := newStoreApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			added, total, err := sources.ImportOPML(cmd.Context(), a.store, cfg.Keys.Feeds, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new feeds (%d total)\n", added, total)
			return nil
		},
	}
}

func exportOPMLCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-opml",
		Short: "Write the feed list as OPML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			a, err := newStoreApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := sources.ExportOPML(cmd.Context(), a.store, cfg.Keys.Feeds, "Feedrewrite Sources")
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
