package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/claimscope/internal/app"
	"github.com/ternarybob/claimscope/internal/services/masterdata"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Manage patent, company and product master data",
}

var masterImportCmd = &cobra.Command{
	Use:   "import <file.yaml>...",
	Short: "Import master data from YAML files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMasterImport,
}

func init() {
	masterCmd.AddCommand(masterImportCmd)
}

func runMasterImport(cmd *cobra.Command, args []string) error {
	return withApp(func(application *app.App) error {
		importer := masterdata.NewImporter(application.StorageManager.MasterDataStorage(), logger)
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			summary, err := importer.Import(cmd.Context(), f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d patents, %d claims, %d companies, %d products, %d product versions\n",
				path, summary.Patents, summary.Claims, summary.Companies, summary.Products, summary.ProductVersions)
		}
		return nil
	})
}
