// rtl loads the units of an rtl.toml project into a runtime and optionally
// exports its RTTI or serves it over gRPC.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/rtl/boot"
	"github.com/chazu/rtl/manifest"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	dir := flag.String("dir", ".", "Project directory (searched upward for "+manifest.FileName+")")
	export := flag.String("export", "", "Write the RTTI snapshot as CBOR to this file")
	saveCatalog := flag.Bool("catalog", false, "Save the RTTI catalog to the project's catalog path")
	serve := flag.Bool("serve", false, "Serve the runtime over gRPC after loading")
	addr := flag.String("addr", "", "Server address (default from "+manifest.FileName+")")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rtl [options] [units...]\n\n")
		fmt.Fprintf(os.Stderr, "Loads the named units (or the project's entry units) and their dependencies.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rtl                        # Load source.entry from ./rtl.toml\n")
		fmt.Fprintf(os.Stderr, "  rtl -export rtti.cbor app  # Load app, write its RTTI\n")
		fmt.Fprintf(os.Stderr, "  rtl -catalog -serve        # Load, save the catalog, serve on the configured address\n")
	}
	flag.Parse()

	m, err := loadManifest(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := m.Log.Verbosity
	if *verbose && verbosity < 2 {
		verbosity = 2
	}
	var logPath *string
	if m.Log.File != "" {
		logPath = &m.Log.File
	}
	commonlog.Configure(verbosity, logPath)

	host, err := boot.New(m, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := host.Run(flag.Args()...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("Loaded units: %v\n", host.Loader.Loaded())
	}

	if *export != "" {
		if err := host.Export(*export); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *saveCatalog {
		if err := host.SaveCatalog(""); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *serve {
		listen := *addr
		if listen == "" {
			listen = m.Server.Addr
		}
		srv := host.Server()
		defer srv.Stop()
		fmt.Printf("rtl server listening on %s\n", listen)
		if err := srv.ListenAndServe(listen); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadManifest finds rtl.toml at or above dir, falling back to defaults
// rooted at dir.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(dir)
	}
	return m, nil
}
