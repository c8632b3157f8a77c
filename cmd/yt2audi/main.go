package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/addoodi/yt2audi/internal/config"
	"github.com/addoodi/yt2audi/internal/convert"
	"github.com/addoodi/yt2audi/internal/download"
	"github.com/addoodi/yt2audi/internal/encoder"
	"github.com/addoodi/yt2audi/internal/log"
	"github.com/addoodi/yt2audi/internal/pipeline"
	"github.com/addoodi/yt2audi/internal/sizelimit"
	"github.com/addoodi/yt2audi/internal/store"
	"github.com/addoodi/yt2audi/internal/transfer"
)

const usage = `yt2audi - download and convert videos for in-car playback

Usage:
  yt2audi video [flags] URL...       process one or more videos
  yt2audi batch [flags] FILE         process URLs listed in a file
  yt2audi playlist [flags] URL       process every entry of a playlist
  yt2audi profiles                   list available device profiles

Flags:
  -profile NAME      device profile to use (default "audi_q5_mmi")
  -output DIR        override the profile's output directory
  -downloads N       concurrent downloads (default 2)
  -conversions N     concurrent conversions (default 1)
  -transfer          copy results to a removable volume (overrides profile)
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	// Cancellation flows from Ctrl+C through every stage; a second signal
	// kills the process the default way.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "video", "batch", "playlist":
		return runProcess(ctx, args[0], args[1:])
	case "profiles":
		return runProfiles()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 1
	}
}

func runProcess(ctx context.Context, command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	profileName := fs.String("profile", config.DefaultProfileName, "device profile name")
	outputDir := fs.String("output", "", "override output directory")
	downloads := fs.Int("downloads", 2, "concurrent downloads")
	conversions := fs.Int("conversions", 1, "concurrent conversions")
	transferFlag := fs.Bool("transfer", false, "copy results to a removable volume")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	profile, err := config.LoadProfile(*profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	log.Configure(log.Config{
		Level:  profile.Logging.Level,
		Format: profile.Logging.Format,
	})

	opts := pipeline.Options{OutputDir: *outputDir}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "transfer" {
			opts.Transfer = transferFlag
		}
	})

	p, st, err := buildPipeline(ctx, profile, int64(*downloads), int64(*conversions))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer st.Close()

	progress := newConsoleProgress()

	switch command {
	case "video":
		results := p.RunBatch(ctx, fs.Args(), opts, progress.update)
		return report(results, fs.NArg())
	case "batch":
		urls, err := readURLFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		results := p.RunBatch(ctx, urls, opts, progress.update)
		return report(results, len(urls))
	case "playlist":
		results, err := p.RunPlaylist(ctx, fs.Arg(0), opts, progress.update)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return report(results, len(results))
	}
	return 1
}

// buildPipeline wires the concrete collaborators: encoder selection runs
// once here, not per item.
func buildPipeline(ctx context.Context, profile *config.Profile, downloads, conversions int64) (*pipeline.Pipeline, *store.Store, error) {
	dataDir, err := config.ConfigDir()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.OpenDefault(dataDir)
	if err != nil {
		return nil, nil, err
	}

	priority := make([]encoder.Encoder, 0, len(profile.Video.EncoderPriority))
	for _, name := range profile.Video.EncoderPriority {
		priority = append(priority, encoder.Encoder(name))
	}
	enc, err := encoder.NewSelector("").SelectBest(ctx, priority)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	p := pipeline.New(
		profile,
		download.NewService(profile, st),
		convert.NewService(profile, enc),
		sizelimit.NewRemediator(profile.Output),
		st,
		transfer.NewManager(),
		downloads,
		conversions,
	)
	return p, st, nil
}

func runProfiles() int {
	names := config.ListProfiles()
	if len(names) == 0 {
		fmt.Println("no profiles found")
		return 0
	}
	for _, name := range names {
		if name == config.DefaultProfileName {
			fmt.Printf("%s (default)\n", name)
			continue
		}
		fmt.Println(name)
	}
	return 0
}

// readURLFile reads one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}

// report prints the outcome. Individual failures within a batch do not fail
// the run; only an empty batch does.
func report(results map[string]*pipeline.Result, requested int) int {
	fmt.Printf("\n%d of %d succeeded\n", len(results), requested)
	for url, res := range results {
		for _, f := range res.Files {
			fmt.Printf("  %s -> %s\n", url, f)
		}
		if res.TransferErr != nil {
			fmt.Printf("  %s: transfer incomplete: %v\n", url, res.TransferErr)
		}
	}
	if len(results) == 0 && requested > 0 {
		return 1
	}
	return 0
}

// consoleProgress renders interleaved per-URL progress without flooding the
// terminal: a line is printed when the stage changes or the percentage moves
// a full point.
type consoleProgress struct {
	mu   sync.Mutex
	last map[string]string
}

func newConsoleProgress() *consoleProgress {
	return &consoleProgress{last: make(map[string]string)}
}

func (c *consoleProgress) update(url string, percent float64, stage string) {
	key := fmt.Sprintf("%s|%s|%d", url, stage, int(percent))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last[url] == key {
		return
	}
	c.last[url] = key
	fmt.Fprintf(os.Stderr, "[%5.1f%%] %-12s %s\n", percent, stage, url)
}
