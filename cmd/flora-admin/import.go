package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/chezflora/internal/app"
	"github.com/xenking/chezflora/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import-catalog <feed.jsonl.gz>...",
	Short: "Import products from gzip-compressed JSON Lines feeds",
	Long: `Import products from gzip-compressed JSON Lines feeds.

Each line holds one product:

  {"sku":"ROSE-RED-12","name":"Red roses","price":"39.90","stock":20,"category":"Roses"}

Products whose SKU already exists are skipped. Unknown categories are
created.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, files []string) error {
	ctx := cmd.Context()
	repos, pool, err := openRepositories(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	im := importer.New(app.NewCatalog(repos, nil), repos.Products, repos.Categories, lg.Named("import"))
	stats, err := im.Import(ctx, files)
	if err != nil {
		return err
	}
	lg.Info("Import completed",
		zap.Int("read", stats.Read),
		zap.Int("created", stats.Created),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("rejected", stats.Rejected),
		zap.Int("categories", stats.Categories),
	)
	return nil
}
