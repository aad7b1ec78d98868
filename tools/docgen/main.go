// Package main renders pmon reference docs as markdown, man pages, or YAML.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/donaldgifford/price-monitor/cmd/pmon/cmd"
)

func main() {
	output := flag.String("output", "docs/cli", "output directory")
	format := flag.String("format", "markdown", "one of markdown, man, yaml")
	flag.Parse()

	n, err := generate(cmd.Root(), *format, *output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("docgen: wrote %d %s files to %s\n", n, *format, *output)
}

// generate writes the docs for root into dir and returns how many files
// were produced.
func generate(root *cobra.Command, format, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dir, err)
	}
	root.DisableAutoGenTag = true

	var (
		err error
		ext string
	)
	switch format {
	case "markdown":
		ext = ".md"
		// Link between pages without the extension so the site generator
		// can resolve them.
		err = doc.GenMarkdownTreeCustom(root, dir,
			func(string) string { return "" },
			func(name string) string { return strings.TrimSuffix(name, ".md") })
	case "man":
		ext = ".1"
		err = doc.GenManTree(root, &doc.GenManHeader{
			Title:   "PMON",
			Section: "1",
			Source:  "price-monitor",
			Manual:  "pmon manual",
		}, dir)
	case "yaml":
		ext = ".yaml"
		err = doc.GenYamlTree(root, dir)
	default:
		return 0, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return 0, fmt.Errorf("generating %s docs: %w", format, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}
