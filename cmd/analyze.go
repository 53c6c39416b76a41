package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/jobs"
	"github.com/spigell/portfolio-agent/internal/tts"
)

const (
	PromptTalkingPoints   = "Show talking points"
	PromptReportByCompany = "Report by companies"
	PromptResultsToFile   = "Dump results to file"
	PromptReadBestMatch   = "Read the best match summary aloud"
	PromptExit            = "Exit"
)

var errExit = errors.New("exit requested")

var analyzePrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptTalkingPoints, PromptReportByCompany, PromptResultsToFile, PromptReadBestMatch, PromptExit},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>...",
	Short: "Analyze job postings against the candidate profile",
	Long: "analyze fetches every URL, detects job postings, extracts their fields and scores " +
		"them against the candidate profile. Other pages get a short summary.",
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		analyze(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolP("auto-approve", "y", false, "print the results and exit without the interactive menu")
	analyzeCmd.Flags().IntP("concurrency", "c", 0, "pages analyzed in parallel (default is jobs.concurrency from the config)")
}

func analyze(cmd *cobra.Command, urls []string) {
	d := setup()
	defer d.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d.logger.Info("starting the job analysis", zap.String("version", version), zap.Int("urls", len(urls)))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(d.config, "", "  ")
	d.logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	analyzer, err := d.analyzer(ctx)
	if err != nil {
		d.fatal("building the job analyzer", err)
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = d.config.Jobs.Concurrency
	}

	results := jobs.AnalyzeAll(ctx, analyzer, urls, concurrency)
	for _, failure := range results.Failed {
		d.logger.Warn("analysis failed", zap.String("url", failure.URL), zap.String("error", failure.Error))
	}

	if results.Len() == 0 {
		d.logger.Info("exiting", zap.String("reason", "no pages analyzed"))
		return
	}

	pretty, _ = json.MarshalIndent(results.Items, "", "  ")
	fmt.Println(string(pretty))

	if auto, _ := cmd.Flags().GetBool("auto-approve"); auto {
		return
	}

	for {
		_, action, err := analyzePrompt.Run()
		if err != nil {
			d.logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, d, results); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			d.fatal("exiting", err)
		}
	}
}

func handleAction(ctx context.Context, action string, d *deps, results *jobs.Results) error {
	switch action {
	case PromptTalkingPoints:
		for _, posting := range results.Postings() {
			d.logger.Info(posting.Title,
				zap.String("url", posting.URL),
				zap.Int("match score", posting.Analysis.MatchScore),
				zap.Strings("talking points", posting.Analysis.TalkingPoints),
				zap.Strings("missing skills", posting.Analysis.MissingSkills),
			)
		}
		return nil
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(results.ReportByCompany(), "", "  ")
		d.logger.Info(string(pretty), zap.Int("postings count", len(results.Postings())))
		return nil
	case PromptResultsToFile:
		filename, err := results.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		d.logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptReadBestMatch:
		postings := results.Postings()
		if len(postings) == 0 {
			d.logger.Info("no job postings to read")
			return nil
		}
		synth, err := d.synthesizer()
		if err != nil {
			return err
		}
		best := postings[0]
		text := fmt.Sprintf("%s. Match score %d. %s", best.Title, best.Analysis.MatchScore, best.Analysis.Summary)
		return say(ctx, synth, d.player(), tts.NewPlayback(d.logger), text, "")
	case PromptExit:
		d.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}
