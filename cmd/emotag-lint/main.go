package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"emotag/internal/markup"
)

var errDiagnostics = errors.New("markup has diagnostics")

type segmentReport struct {
	Text      string    `json:"text" yaml:"text"`
	Vector    []float64 `json:"vector" yaml:"vector,flow"`
	Start     int       `json:"start" yaml:"start"`
	End       int       `json:"end" yaml:"end"`
	RuneStart int       `json:"rune_start" yaml:"rune_start"`
	RuneEnd   int       `json:"rune_end" yaml:"rune_end"`
}

type diagnosticReport struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Offset  int    `json:"offset" yaml:"offset"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
}

type fileReport struct {
	File        string             `json:"file" yaml:"file"`
	PlainText   string             `json:"plain_text" yaml:"plain_text"`
	Segments    []segmentReport    `json:"segments" yaml:"segments"`
	Diagnostics []diagnosticReport `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func main() {
	if err := newRootCmd(viper.New(), os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper, stdin io.Reader, stdout io.Writer) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "emotag-lint [file ...]",
		Short: "Check emotion markup and print the parsed segments",
		Long: `emotag-lint parses text annotated with [Emotion:Intensity, ...] directives
and prints the resulting segments and any diagnostics. With no files, or with "-",
it reads standard input.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return run(v, args, stdin, stdout)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.emotag-lint.yaml)")
	cmd.Flags().StringP("format", "f", "text", "output format: text, json or yaml")
	cmd.Flags().Bool("strict", false, "exit non-zero when any diagnostic is reported")
	cmd.Flags().Bool("keep-empty", false, "keep segments with no speakable text")
	cmd.Flags().String("adjacency", string(markup.AdjacencyReplace), "adjacent directive policy: replace or merge")

	_ = v.BindPFlag("format", cmd.Flags().Lookup("format"))
	_ = v.BindPFlag("strict", cmd.Flags().Lookup("strict"))
	_ = v.BindPFlag("keep_empty", cmd.Flags().Lookup("keep-empty"))
	_ = v.BindPFlag("adjacency", cmd.Flags().Lookup("adjacency"))

	return cmd
}

// initConfig reads the optional config file and EMOTAG_* environment variables.
func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("emotag")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return v.ReadInConfig()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName(".emotag-lint")
	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return err
	}
	return nil
}

func run(v *viper.Viper, args []string, stdin io.Reader, stdout io.Writer) error {
	adjacency, err := markup.ParseAdjacencyPolicy(v.GetString("adjacency"))
	if err != nil {
		return err
	}
	parser := markup.NewParser(markup.Options{
		KeepEmpty: v.GetBool("keep_empty"),
		Adjacency: adjacency,
	})

	if len(args) == 0 {
		args = []string{"-"}
	}
	reports := make([]fileReport, 0, len(args))
	for _, name := range args {
		text, err := readInput(name, stdin)
		if err != nil {
			return err
		}
		reports = append(reports, buildReport(name, text, parser.Parse(text)))
	}

	if err := writeReports(stdout, v.GetString("format"), reports); err != nil {
		return err
	}

	if v.GetBool("strict") {
		for _, r := range reports {
			if len(r.Diagnostics) > 0 {
				return errDiagnostics
			}
		}
	}
	return nil
}

func readInput(name string, stdin io.Reader) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

func buildReport(name, text string, res markup.Result) fileReport {
	if name == "-" {
		name = "<stdin>"
	}
	out := fileReport{
		File:      name,
		PlainText: res.PlainText,
		Segments:  make([]segmentReport, 0, len(res.Segments)),
	}
	for _, seg := range res.Segments {
		rs, re := seg.RuneRange(text)
		out.Segments = append(out.Segments, segmentReport{
			Text:      seg.Text,
			Vector:    seg.Vector.Rounded(4).Slice(),
			Start:     seg.Start,
			End:       seg.End,
			RuneStart: rs,
			RuneEnd:   re,
		})
	}
	for _, d := range res.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, diagnosticReport{
			Code:    string(d.Code),
			Message: d.Message,
			Offset:  d.Offset,
			Token:   d.Token,
		})
	}
	return out
}

func writeReports(w io.Writer, format string, reports []fileReport) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return writeText(w, reports)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeText(w io.Writer, reports []fileReport) error {
	for _, r := range reports {
		if _, err := fmt.Fprintf(w, "%s: %d segment(s), %d diagnostic(s)\n", r.File, len(r.Segments), len(r.Diagnostics)); err != nil {
			return err
		}
		for _, seg := range r.Segments {
			if _, err := fmt.Fprintf(w, "  [%d:%d] %q %s\n", seg.Start, seg.End, seg.Text, formatVector(seg.Vector)); err != nil {
				return err
			}
		}
		for _, d := range r.Diagnostics {
			if _, err := fmt.Fprintf(w, "  %s:%d: %s: %s\n", r.File, d.Offset, d.Code, d.Message); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%g", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
