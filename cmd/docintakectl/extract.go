package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/docintake/docintake/core/extraction"
	"github.com/docintake/docintake/core/extraction/formats"
	"github.com/docintake/docintake/core/extraction/prompt"
)

func runResolveCmd(cmd string, args []string, out io.Writer) error {
	fs := newFlagSet(cmd)
	global := fs.Bool("global", false, "resolve the global baseline (resolve only)")
	fingerprint := fs.Bool("fingerprint", false, "print only the configuration fingerprint (resolve only)")
	return withApp(fs, args, func(ctx context.Context, a *app) error {
		if cmd == "annotate" {
			if fs.NArg() < 1 {
				return errors.New("client id required")
			}
			annotated, err := a.resolver.ResolveAnnotated(ctx, fs.Arg(0))
			if err != nil {
				return err
			}
			return printJSON(out, annotated)
		}
		cfg, err := effective(ctx, a, fs, *global)
		if err != nil {
			return err
		}
		if *fingerprint {
			fp, err := extraction.Fingerprint(*cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, fp)
			return err
		}
		return printJSON(out, cfg)
	})
}

func effective(ctx context.Context, a *app, fs *flagSet, global bool) (*extraction.EffectiveConfig, error) {
	if global {
		return a.resolver.ResolveGlobal(ctx)
	}
	if fs.NArg() < 1 {
		return nil, errors.New("client id required (or --global)")
	}
	return a.resolver.ResolveEffective(ctx, fs.Arg(0))
}

// paramFlag collects repeated --param tag.name=value flags.
type paramFlag map[string]map[string]string

func (p paramFlag) String() string { return "" }

func (p paramFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	tag, name, okTag := strings.Cut(key, ".")
	if !ok || !okTag || tag == "" || name == "" {
		return fmt.Errorf("param %q must look like tag.name=value", v)
	}
	if p[tag] == nil {
		p[tag] = map[string]string{}
	}
	p[tag][name] = value
	return nil
}

// filterFlags registers the prompt filter flags on fs.
func filterFlags(fs *flag.FlagSet) func() (*prompt.Options, error) {
	fields := fs.String("fields", "", "comma-separated field keys to include")
	tags := fs.String("tags", "", "comma-separated tag ids to include")
	summary := fs.String("summary", "", "force the summary instruction on or off")
	params := paramFlag{}
	fs.Var(params, "param", "tag parameter override tag.name=value (repeatable)")
	return func() (*prompt.Options, error) {
		filter := &prompt.FieldFilter{
			Fields: splitList(*fields),
			Tags:   splitList(*tags),
		}
		if len(params) > 0 {
			filter.TagParameters = params
		}
		if *summary != "" {
			v, err := strconv.ParseBool(*summary)
			if err != nil {
				return nil, fmt.Errorf("--summary: %w", err)
			}
			filter.IncludeSummary = &v
		}
		if filter.Fields == nil && filter.Tags == nil && filter.TagParameters == nil && filter.IncludeSummary == nil {
			return nil, nil
		}
		return &prompt.Options{FieldFilter: filter}, nil
	}
}

func runPromptCmd(cmd string, args []string, out io.Writer) error {
	fs := newFlagSet(cmd)
	global := fs.Bool("global", false, "use the global baseline")
	options := filterFlags(fs.FlagSet)
	return withApp(fs, args, func(ctx context.Context, a *app) error {
		cfg, err := effective(ctx, a, fs, *global)
		if err != nil {
			return err
		}
		opts, err := options()
		if err != nil {
			return err
		}
		if cmd == "prompt" {
			_, err := fmt.Fprintln(out, prompt.BuildExtractionPrompt(*cfg, opts))
			return err
		}
		req, err := prompt.NewRequest(*cfg, opts)
		if err != nil {
			return err
		}
		return printJSON(out, req)
	})
}

// normalized is the output of `normalize`.
type normalized struct {
	Analysis map[string]any   `json:"analysis"`
	Filename string           `json:"filename"`
	Warnings []formats.Warning `json:"warnings,omitempty"`
}

func runNormalizeCmd(args []string, out io.Writer) error {
	fs := newFlagSet("normalize")
	global := fs.Bool("global", false, "use the global baseline")
	response := fs.String("response", "", "file holding the raw model reply (- for stdin)")
	ext := fs.String("ext", ".pdf", "extension of the renamed document")
	_ = ext // UNRESOLVED: flag is parsed but not yet wired to filename rendering
	return withApp(fs, args, func(ctx context.Context, a *app) error {
		cfg, err := effective(ctx, a, fs, *global)
		if err != nil {
			return err
		}
		raw, err := readResponse(*response)
		if err != nil {
			return err
		}
		parsed, err := prompt.ParseResponse(raw)
		if err != nil {
			return err
		}
		analysis, warnings := prompt.NormalizeAndValidate(parsed, *cfg)
		for _, w := range warnings {
			a.metrics.AddFormatWarnings(w.Field, 1)
		}
		return printJSON(out, normalized{Analysis: analysis, Warnings: warnings})
	})
}

func readResponse(path string) (string, error) {
	switch path {
	case "":
		return "", errors.New("--response required")
	case "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	default:
		// #nosec G304 -- CLI explicitly reads local files provided by the operator.
		data, err := os.ReadFile(path)
		return string(data), err
	}
}

func runValidateCmd(args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: validate <format> <value>; formats: %s", strings.Join(formats.Names(), ", "))
	}
	return printJSON(out, formats.ValidateOne(args[1], args[0]))
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
