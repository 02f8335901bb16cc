package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/romangod6/big-sitemap/internal/inspect"
	"github.com/romangod6/big-sitemap/internal/sitemap"
	"github.com/spf13/pflag"
)

func main() {
	root := pflag.String("root", "", "document root to read files from instead of fetching them")
	baseURL := pflag.String("base-url", "", "public URL the document root is served under (with --root)")
	maxPerFile := pflag.Int("max", sitemap.DefaultMaxPerFile, "maximum urls per sitemap file")
	timeout := pflag.Duration("timeout", 30*time.Second, "HTTP timeout per file")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sitemapcheck [flags] <index URL>\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}
	indexURL := pflag.Arg(0)

	open := inspect.HTTPOpener(&http.Client{Timeout: *timeout})
	if *root != "" {
		if *baseURL == "" {
			fmt.Fprintln(os.Stderr, "--base-url is required with --root")
			os.Exit(2)
		}
		open = inspect.DirOpener(*baseURL, *root)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := inspect.Inspect(ctx, open, indexURL, *maxPerFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error inspecting %s: %v\n", indexURL, err)
		os.Exit(1)
	}

	fmt.Printf("Index: %s\n", report.Index)
	for _, f := range report.Files {
		fmt.Printf("  %-70s %7d urls\n", f.Loc, f.URLs)
	}
	fmt.Printf("Total URLs found: %d in %d files\n", report.URLCount(), len(report.Files))

	if !report.OK() {
		fmt.Printf("\n%d problems:\n", len(report.Problems))
		for _, p := range report.Problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}
}
