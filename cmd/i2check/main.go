// i2check builds an IPv4 route table file from a text route dump and answers
// membership queries against it.
//
// Usage:
//
//	i2check [flags]          build table.bin from rl.txt
//	i2check [flags] check    read one address from stdin, print PASS or FAIL
//
// Any positional argument selects query mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tamirms/prefixtable/internal/app"
	"github.com/tamirms/prefixtable/internal/config"
	"k8s.io/klog/v2"
)

var (
	configFile string
	routesFile string
	tableFile  string
	dump       bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "Path to a YAML configuration file.")
	flag.StringVar(&routesFile, "routes", "", "Route source to build from. Overrides routesFile in the configuration.")
	flag.StringVar(&tableFile, "table", "", "Table file to write or query. Overrides tableFile in the configuration.")
	flag.BoolVar(&dump, "dump", false, "In build mode, print every stored prefix in binary.")
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [check]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx := klog.NewContext(context.Background(), klog.Background().WithName("i2check"))
	logger := klog.FromContext(ctx)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error(err, "Error loading configuration")
		klog.FlushAndExit(klog.ExitFlushTimeout, 2)
	}

	a := app.New(cfg, os.Stdout)
	if flag.NArg() > 0 {
		if _, err := a.Query(ctx, os.Stdin); err != nil {
			logger.V(1).Info("Query failed", "err", err)
		}
	} else {
		if _, err := a.Build(ctx, dump); err != nil {
			logger.Error(err, "Build failed")
		}
	}

	if err := a.WriteMetrics(); err != nil {
		logger.Error(err, "Error writing metrics")
	}
	klog.Flush()
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(configFile); err != nil {
			return nil, err
		}
	}
	if routesFile != "" {
		cfg.RoutesFile = routesFile
	}
	if tableFile != "" {
		cfg.TableFile = tableFile
	}
	return cfg, nil
}
