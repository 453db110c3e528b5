package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"nugget/internal/config"
	"nugget/internal/di"
)

const version = "0.1.0"

// Color helpers shared by the REPL and the subcommands.
var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// cliFlags carries the persistent flag values shared by all subcommands.
type cliFlags struct {
	configPath string
	property   string
	fake       bool
	debug      bool
}

// NewRootCommand builds the nugget command tree: an interactive prompt by
// default, one-shot answering when arguments are given, and `serve` for
// the HTTP API.
func NewRootCommand() *cobra.Command {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "nugget [question]",
		Short: "Korean natural-language analytics assistant",
		Long: fmt.Sprintf(`%s

Ask questions about your analytics data in Korean. Without arguments an
interactive prompt opens; with arguments the joined question is answered
once and the process exits.

%s
  nugget                          # interactive prompt
  nugget "지난주 총 매출 알려줘"      # one-shot question
  nugget --fake "일별 사용자 추이"   # offline fixtures, no credentials
  nugget serve                    # HTTP server`,
			bold("nugget "+version), bold("EXAMPLES:")),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildContainer(flags)
			if err != nil {
				return err
			}
			repl := newREPL(container, flags.debug)
			if len(args) > 0 {
				return repl.answerOnce(strings.Join(args, " "))
			}
			return repl.run()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&flags.property, "property", "p", "", "Analytics property ID")
	rootCmd.PersistentFlags().BoolVar(&flags.fake, "fake", false, "Force fake mode (offline fixtures)")
	rootCmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "Debug output")

	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig resolves the effective configuration from file, environment
// and flags. The fake flag goes through the environment so validation
// already sees the final mode.
func loadConfig(flags *cliFlags) (*config.Config, error) {
	if flags.fake {
		if err := os.Setenv("NUGGET_MODE", config.ModeFake); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadFile(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.property != "" {
		cfg.Property = flags.property
	}
	if flags.debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func buildContainer(flags *cliFlags) (*di.Container, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return di.BuildContainer(cfg)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nugget %s\n", version)
		},
	}
}
