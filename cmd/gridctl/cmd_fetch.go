package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srand/jolt/grid/pkg/filecache"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/utils"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <id>[@<version>]...",
	Short: "Fetch files from the registry into the cache directory",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		versions := make([]protocol.FileVersionId, 0, len(args))
		for _, arg := range args {
			id, version, _ := strings.Cut(arg, "@")
			versions = append(versions, protocol.FileVersionId{Id: id, Version: version})
		}

		fs, err := utils.NewFs(configData.CacheDir)
		if err != nil {
			log.Fatal(err)
		}

		provider, closeProvider := NewProvider()
		defer closeProvider()

		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		cache := filecache.NewCache(fs, provider)
		entries, err := cache.RequestFiles(ctx, versions...)
		if err != nil {
			log.Fatal(err)
		}

		for _, entry := range entries {
			fmt.Printf("%s %s\n", entry.VersionId, filepath.Join(configData.CacheDir, entry.Path))
		}

		stats := cache.Statistics()
		log.Debugf("Fetched %d files, %d failures", stats.Fetches, stats.Failures)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
