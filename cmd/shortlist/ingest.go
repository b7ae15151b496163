package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	ingestuc "github.com/kailas-cloud/shortlist/internal/usecase/ingest"
)

type ingestFlags struct {
	jdFile  string
	jdText  string
	globs   []string
	urls    []string
	asJSON  bool
	noProgr bool
}

func newIngestCmd(c *cli) *cobra.Command {
	var f ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest <pool> [files...]",
		Short: "Score documents against a job description and replace the pool",
		Long: `Score every document against the job description and atomically replace
the pool with the ones that succeed. Documents that fail extraction or
embedding are reported and skipped.

Examples:
  shortlist ingest eng --jd jd.txt cv1.pdf cv2.txt
  shortlist ingest eng --jd jd.txt --glob "cvs/**/*.{pdf,txt}"
  shortlist ingest eng --jd-text "Senior Go engineer" --url https://example.com/cv.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), c, args[0], args[1:], f, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&f.jdFile, "jd", "", "file holding the job description")
	cmd.Flags().StringVar(&f.jdText, "jd-text", "", "job description text")
	cmd.Flags().StringArrayVar(&f.globs, "glob", nil, "doublestar pattern of documents to ingest (repeatable)")
	cmd.Flags().StringArrayVar(&f.urls, "url", nil, "document URL to download and ingest (repeatable)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&f.noProgr, "no-progress", false, "disable the progress bar")
	cmd.MarkFlagsMutuallyExclusive("jd", "jd-text")
	return cmd
}

func runIngest(ctx context.Context, c *cli, poolID string, files []string, f ingestFlags, out io.Writer) error {
	jd, err := jobDescription(f)
	if err != nil {
		return err
	}

	paths, err := expandDocuments(files, f.globs)
	if err != nil {
		return err
	}

	docs := make([]ingestuc.Document, 0, len(paths)+len(f.urls))
	for _, p := range paths {
		body, err := os.ReadFile(filepath.Clean(p))
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		docs = append(docs, ingestuc.Document{Name: filepath.Base(p), Body: body})
	}
	for _, u := range f.urls {
		docs = append(docs, ingestuc.Document{URL: u})
	}

	a, err := buildApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.close()

	req := ingestuc.Request{PoolID: poolID, JobDescription: jd, Documents: docs}
	if !f.noProgr && !f.asJSON {
		req.Progress = progressReporter(len(docs))
	}

	report, err := a.ingest.Ingest(ctx, req)
	if err != nil {
		// Outcomes are set when every document failed.
		for _, o := range report.Outcomes {
			_, _ = fmt.Fprintf(out, "  - %s: %s\n", o.Name, o.Error)
		}
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	_, _ = fmt.Fprintf(out, "\nIngestion complete (pool %s, policy %s):\n", report.PoolID, report.Policy)
	_, _ = fmt.Fprintf(out, "  Succeeded: %d\n", report.Succeeded)
	_, _ = fmt.Fprintf(out, "  Failed:    %d\n", report.Failed)
	for _, o := range report.Outcomes {
		if !o.OK {
			_, _ = fmt.Fprintf(out, "  - %s: %s\n", o.Name, o.Error)
		}
	}
	return nil
}

func jobDescription(f ingestFlags) (string, error) {
	switch {
	case f.jdText != "":
		return f.jdText, nil
	case f.jdFile != "":
		b, err := os.ReadFile(filepath.Clean(f.jdFile))
		if err != nil {
			return "", fmt.Errorf("read job description: %w", err)
		}
		return string(b), nil
	default:
		return "", errors.New("one of --jd or --jd-text is required")
	}
}

// expandDocuments merges explicit files with glob matches, keeping first-seen order.
func expandDocuments(files, globs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, p := range files {
		add(p)
	}
	for _, pattern := range globs {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func progressReporter(total int) func(ingestuc.DocumentOutcome) {
	bar := progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Scoring[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var mu sync.Mutex
	return func(o ingestuc.DocumentOutcome) {
		mu.Lock()
		defer mu.Unlock()
		if !o.OK {
			bar.Describe(fmt.Sprintf("[cyan]Scoring[reset] [red]failed: %s[reset]", o.Name))
		}
		_ = bar.Add(1)
	}
}
