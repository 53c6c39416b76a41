package cmd

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/agent"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the job analysis and turn decision tools over MCP on stdio",
	Run: func(_ *cobra.Command, _ []string) {
		serveMCP()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// serveMCP blocks until stdin is closed or the process is interrupted. Logs
// go to stderr, stdout belongs to the protocol.
func serveMCP() {
	d := setup()
	defer d.close()

	ctx := context.Background()

	decider, err := d.decider(ctx)
	if err != nil {
		d.fatal("building a turn decider", err, zap.String("mode", d.config.Voice.TurnMode))
	}

	tools := agent.Tools{Decider: decider, Logger: d.logger}

	analyzer, err := d.analyzer(ctx)
	if err != nil {
		d.logger.Warn("job analysis tool disabled", zap.Error(err))
	} else {
		tools.Analyzer = analyzer
	}

	s := agent.NewServer(app, version, tools)

	d.logger.Info("serving tools over stdio", zap.String("version", version), zap.Bool("job_analysis", tools.Analyzer != nil))

	if err := server.ServeStdio(s, server.WithErrorLogger(zap.NewStdLog(d.logger))); err != nil {
		d.fatal("serving mcp", err)
	}
}
