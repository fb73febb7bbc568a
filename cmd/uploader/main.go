package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wu-transcripts/uploader/internal/channel"
	"github.com/wu-transcripts/uploader/internal/config"
	"github.com/wu-transcripts/uploader/internal/devserver"
	"github.com/wu-transcripts/uploader/internal/history"
	"github.com/wu-transcripts/uploader/internal/models"
	"github.com/wu-transcripts/uploader/internal/orchestrator"
	"github.com/wu-transcripts/uploader/internal/review"
	"github.com/wu-transcripts/uploader/internal/transport"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "uploader",
	Short: "WU Transcript Manager client",
	Long: `Uploads academic transcripts to the WU Transcript Manager backend,
collects corrections for courses the classifier could not resolve, and
queries the processed records.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the YAML config file")
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(devserverCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "uploader.yaml"
	}
	return filepath.Join(home, ".wu-transcripts", "uploader.yaml")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload transcripts and review flagged courses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			files, paths, err := selectFiles(args)
			if err != nil {
				return err
			}

			client := transport.New(cfg.Backend.BaseURL, cfg.RequestTimeout())
			channels := channel.NewManager(cfg.WebSocketBaseURL(),
				channel.WithKeepalive(cfg.Keepalive()),
				channel.WithReconnectPolicy(cfg.ReconnectDelay(), cfg.Channel.MaxReconnectAttempts),
			)
			reviewer := review.NewTerminalReviewer(client.FetchCategories(ctx))
			openFile := func(f models.PendingFile) (io.ReadCloser, error) {
				path, ok := paths[f.Name]
				if !ok {
					return nil, fmt.Errorf("no local path known for %s", f.Name)
				}
				return os.Open(path)
			}

			opts := orchestrator.DefaultOptions()
			opts.MaxFiles = cfg.Upload.MaxFiles
			opts.MaxFileSize = cfg.Upload.MaxFileSizeBytes
			opts.AllowedTypes = cfg.Upload.AllowedTypes

			ctrl := orchestrator.New(client, channels, reviewer, openFile, opts, printProgress)

			report := history.NewReport()
			result, err := ctrl.ProcessBatch(ctx, files)
			if err != nil {
				return err
			}

			printInvalid(result.Invalid)
			printResults(result.Results)
			if result.Status != "" {
				fmt.Println(result.Status)
			}

			for _, fr := range result.Results {
				report.Files = append(report.Files, history.FileOutcome{
					FileName: fr.File.Name,
					State:    string(fr.State),
					Message:  fr.Message,
				})
			}
			store, err := history.NewStore(cfg.HistoryDir())
			if err != nil {
				return err
			}
			return store.Append(report)
		},
	}
	return cmd
}

// selectFiles builds the pending-file batch from CLI paths, disambiguating
// duplicate base names with a position suffix so every queued name (and its
// transport token) is unique.
func selectFiles(args []string) ([]models.PendingFile, map[string]string, error) {
	files := make([]models.PendingFile, 0, len(args))
	paths := make(map[string]string, len(args))
	seen := make(map[string]int)

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		name := filepath.Base(arg)
		seen[name]++
		if n := seen[name]; n > 1 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
			seen[name]++
		}
		paths[name] = arg
		files = append(files, models.PendingFile{
			Name:     name,
			Size:     info.Size(),
			MIMEType: models.DetectMIMEType(name),
		})
	}
	return files, paths, nil
}

func printProgress(fileName string, pct float64) {
	fmt.Printf("\r[Upload] %s: %3.0f%%", fileName, pct)
	if pct >= 100 {
		fmt.Println()
	}
}

func printInvalid(invalid []models.InvalidFile) {
	for _, inv := range invalid {
		fmt.Printf("Skipped %s: %s\n", inv.File.Name, inv.Reason)
	}
}

func printResults(results []orchestrator.FileResult) {
	if len(results) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"File", "Result", "Detail"})
	for _, r := range results {
		t.AppendRow(table.Row{r.File.Name, r.State, r.Message})
	}
	t.Render()
}

func searchCmd() *cobra.Command {
	var firstName, lastName, category string
	var levels []string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query processed transcript records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			client := transport.New(cfg.Backend.BaseURL, cfg.RequestTimeout())
			result, err := client.Search(ctx, models.SearchCriteria{
				EducatorFirstName: firstName,
				EducatorLastName:  lastName,
				CourseCategory:    category,
				EducationLevel:    levels,
			})
			if err != nil {
				return err
			}
			if result.Status == "not_found" {
				fmt.Println(result.Message)
				return nil
			}
			if result.EducatorName != "" {
				fmt.Printf("Educator: %s\n", result.EducatorName)
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Category", "Course Details"})
			for _, row := range result.QueriedData {
				t.AppendRow(table.Row{row.Category, row.CourseDetails})
			}
			t.Render()
			if result.Notes != "" {
				fmt.Println(result.Notes)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&firstName, "first-name", "", "educator first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "educator last name")
	cmd.Flags().StringVar(&category, "category", "", "course category filter")
	cmd.Flags().StringArrayVar(&levels, "level", nil, "education level filter (repeatable)")
	return cmd
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the course categories the backend knows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			client := transport.New(cfg.Backend.BaseURL, cfg.RequestTimeout())
			categories := client.FetchCategories(ctx)
			if len(categories) == 0 {
				fmt.Println("No categories available.")
				return nil
			}
			for _, c := range categories {
				fmt.Println(c)
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past upload batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := history.NewStore(cfg.HistoryDir())
			if err != nil {
				return err
			}
			reports, err := store.List()
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Println("No batches recorded yet.")
				return nil
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Started", "Files", "Succeeded", "Batch ID"})
			for _, r := range reports {
				t.AppendRow(table.Row{
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					len(r.Files),
					r.Succeeded(),
					r.ID,
				})
			}
			t.Render()
			return nil
		},
	}
}

func devserverCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local simulated backend for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("WU Transcript Manager devserver %s listening on %s\n", Version, addr)
			return devserver.New().Start(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("uploader %s (built %s)\n", Version, BuildTime)
		},
	}
}
