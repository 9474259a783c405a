package cmd

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/lowbkg/crossrate/internal/evalcache"
	"github.com/lowbkg/crossrate/internal/render"
	"github.com/lowbkg/crossrate/internal/session"
)

var cachePath string

var reportCmd = &cobra.Command{
	Use:   "report <table.tsv|cache:ETAG> <outdir>",
	Short: "Render the dashboard bundle (HTML table, SVG charts, JSON snapshot)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, outdir := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var cache *evalcache.Cache
		if cachePath != "" {
			cache, err = evalcache.Open(cachePath)
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()
		}

		body, etag, err := readTable(source, cache)
		if err != nil {
			return err
		}

		s := session.New(cfg)
		start := time.Now()
		if err := s.Load(bytes.NewReader(body)); err != nil {
			return err
		}
		fmt.Printf("Loaded %d records, %d dimensions in %v.\n",
			len(s.Records()), len(s.Schema().Dimensions), time.Since(start))

		if err := applyFilters(s); err != nil {
			return err
		}

		if cache != nil && !strings.HasPrefix(source, "cache:") {
			if err := cache.Put(etag, body); err != nil {
				return err
			}
			fmt.Printf("Cached datatable as %s.\n", etag)
		}

		if err := os.MkdirAll(outdir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", outdir, err)
		}
		if err := render.WriteReport(s, osfs.New(outdir)); err != nil {
			return err
		}
		fmt.Printf("Report written to %s.\n", outdir)
		return nil
	},
}

// readTable resolves the table source: a plain file path, or "cache:ETAG"
// to replay a previously cached body.
func readTable(source string, cache *evalcache.Cache) ([]byte, string, error) {
	if etag, ok := strings.CutPrefix(source, "cache:"); ok {
		if cache == nil {
			return nil, "", fmt.Errorf("cache source %q needs --cache", source)
		}
		body, err := cache.Get(etag)
		if err != nil {
			return nil, "", err
		}
		return body, etag, nil
	}
	body, err := os.ReadFile(source)
	if err != nil {
		return nil, "", fmt.Errorf("read table: %w", err)
	}
	sum := sha256.Sum256(body)
	return body, hex.EncodeToString(sum[:8]), nil
}

func init() {
	addFilterFlags(reportCmd)
	reportCmd.Flags().StringVar(&cachePath, "cache", "", "Path to a datatable cache database")
	rootCmd.AddCommand(reportCmd)
}
