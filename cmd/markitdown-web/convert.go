// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nicholasgasior/markitdown-web/internal/batch"
)

// errConversionFailed makes the command exit non-zero when any file failed.
var errConversionFailed = errors.New("one or more files could not be converted")

type convertOptions struct {
	extension string
	outDir    string
	report    string
}

// reportEntry is one line of the --report output.
type reportEntry struct {
	File    string       `json:"file" yaml:"file"`
	Status  batch.Status `json:"status" yaml:"status"`
	Title   string       `json:"title,omitempty" yaml:"title,omitempty"`
	Outputs []string     `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Notice  string       `json:"notice,omitempty" yaml:"notice,omitempty"`
}

type convertReport struct {
	Files   []reportEntry `json:"files" yaml:"files"`
	Summary batch.Summary `json:"summary" yaml:"summary"`
}

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert local files to Markdown",
	Long: `Convert one or more local files. With a single file and no --out-dir the
Markdown is printed to stdout. Otherwise each converted file is written as
<name>_converted.md and <name>_converted.txt. With no arguments the document
is read from stdin and --extension names its format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, processor, err := setup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		var opts convertOptions
		opts.extension, _ = cmd.Flags().GetString("extension")
		opts.outDir, _ = cmd.Flags().GetString("out-dir")
		opts.report, _ = cmd.Flags().GetString("report")

		return runConvert(cmd.Context(), processor, opts, args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	convertCmd.Flags().StringP("extension", "x", "", "file extension hint for stdin input (e.g. .docx)")
	convertCmd.Flags().StringP("out-dir", "o", "", "directory for the converted files")
	convertCmd.Flags().String("report", "", "print a batch report: yaml or json")
	convertCmd.Flags().Bool("keep-data-uris", false, "keep full data URIs for embedded images")

	_ = viper.BindPFlag("conversion.keep_data_uris", convertCmd.Flags().Lookup("keep-data-uris"))

	rootCmd.AddCommand(convertCmd)
}

func runConvert(ctx context.Context, p *batch.Processor, opts convertOptions, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	switch opts.report {
	case "", "yaml", "json":
	default:
		return fmt.Errorf("unknown report format %q (want yaml or json)", opts.report)
	}

	uploads, err := collectUploads(opts, args, stdin)
	if err != nil {
		return err
	}

	outcomes := p.Process(ctx, uploads)

	// A lone document goes to stdout unless the output is already claimed by
	// a report or an explicit directory.
	toStdout := len(outcomes) == 1 && opts.outDir == "" && opts.report == ""
	outDir := opts.outDir
	if outDir == "" {
		outDir = "."
	}

	report := convertReport{Summary: batch.Summarize(outcomes)}
	names := make(artifactNames)
	for _, o := range outcomes {
		entry := reportEntry{File: o.FileName, Status: o.Status, Title: o.Title}
		switch {
		case !o.Converted():
			entry.Notice = o.Notice()
			fmt.Fprintln(stderr, o.Notice())
		case toStdout:
			fmt.Fprintln(stdout, o.Content)
		default:
			outputs, err := writeArtifacts(outDir, names.claim(o), o)
			if err != nil {
				return err
			}
			entry.Outputs = outputs
		}
		report.Files = append(report.Files, entry)
	}

	if err := writeReport(stdout, opts.report, report); err != nil {
		return err
	}
	if report.Summary.HasFailures() {
		return errConversionFailed
	}
	return nil
}

func collectUploads(opts convertOptions, args []string, stdin io.Reader) ([]batch.Upload, error) {
	if len(args) > 0 {
		uploads := make([]batch.Upload, 0, len(args))
		for _, arg := range args {
			uploads = append(uploads, batch.FromPath(arg))
		}
		return uploads, nil
	}

	if opts.extension == "" {
		return nil, errors.New("reading from stdin requires --extension")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	ext := opts.extension
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return []batch.Upload{batch.FromBytes("stdin"+ext, data)}, nil
}

// artifactNames hands out output names within one run. Inputs that share a
// base name (a/report.docx, b/report.pdf) get report-2_converted.md and so on
// instead of overwriting each other.
type artifactNames map[string]bool

func (a artifactNames) claim(o batch.Outcome) [2]string {
	stem := batch.BaseName(o.FileName)
	pair := [2]string{o.MarkdownName(), o.TextName()}
	for n := 2; a[pair[0]] || a[pair[1]]; n++ {
		numbered := fmt.Sprintf("%s-%d", stem, n)
		pair = [2]string{numbered + "_converted.md", numbered + "_converted.txt"}
	}
	a[pair[0]], a[pair[1]] = true, true
	return pair
}

func writeArtifacts(dir string, names [2]string, o batch.Outcome) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	var written []string
	for _, name := range names {
		target := filepath.Join(dir, name)
		if err := os.WriteFile(target, []byte(o.Content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", target, err)
		}
		written = append(written, target)
	}
	return written, nil
}

func writeReport(w io.Writer, format string, report convertReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}
	return nil
}
