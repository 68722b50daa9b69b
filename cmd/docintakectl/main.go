package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docintake/docintake/core/infra/config"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
		}
		fail(err.Error())
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return runInitCmd(rest, out)
	case "clients":
		return runClientsCmd(rest, out)
	case "overrides":
		return runOverridesCmd(rest, out)
	case "resolve", "annotate":
		return runResolveCmd(cmd, rest, out)
	case "prompt", "request":
		return runPromptCmd(cmd, rest, out)
	case "normalize":
		return runNormalizeCmd(rest, out)
	case "validate":
		return runValidateCmd(rest, out)
	case "events":
		return runEventsCmd(rest, out)
	case "version":
		return runVersionCmd(out)
	default:
		return errUsage
	}
}

type flagSet struct {
	*flag.FlagSet
	dir   *string
	store *string
	args  []string
}

func newFlagSet(name string) *flagSet {
	cfg := config.Load()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dir := fs.String("dir", cfg.ConfigDir, "config directory (file store)")
	st := fs.String("store", cfg.Store, "config store: file or redis")
	return &flagSet{FlagSet: fs, dir: dir, store: st}
}

// ParseArgs parses args and returns the effective runtime config. Flags may
// appear before or after positional arguments.
func (fs *flagSet) ParseArgs(args []string) (*config.Config, error) {
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, fmt.Errorf("%s: %w", fs.Name(), err)
		}
		rest = fs.FlagSet.Args()
		if len(rest) == 0 {
			break
		}
		fs.args = append(fs.args, rest[0])
		rest = rest[1:]
	}
	cfg := config.Load()
	cfg.ConfigDir = *fs.dir
	cfg.Store = strings.ToLower(*fs.store)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (fs *flagSet) NArg() int { return len(fs.args) }

func (fs *flagSet) Arg(i int) string {
	if i < 0 || i >= len(fs.args) {
		return ""
	}
	return fs.args[i]
}

// readPayload returns the JSON given inline or read from a file.
func readPayload(inline, path string) (json.RawMessage, error) {
	switch {
	case inline != "" && path != "":
		return nil, errors.New("use --json or --file, not both")
	case inline != "":
		return json.RawMessage(inline), nil
	case path != "":
		// #nosec G304 -- CLI explicitly reads local files provided by the operator.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	default:
		return nil, errors.New("payload required (--json or --file)")
	}
}

func printJSON(out io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func usage(w io.Writer) {
	fmt.Fprint(w, `docintakectl - document intake configuration CLI

Usage:
  docintakectl init [--force]
  docintakectl clients list [--enabled]
  docintakectl clients create <client_id> (--json '{...}'|--file record.json)
  docintakectl clients update <client_id> (--json '{...}'|--file patch.json)
  docintakectl clients delete <client_id>
  docintakectl overrides save <client_id> <fields|tags|prompt|output|model> (--json|--file)
  docintakectl overrides remove <client_id> <section>
  docintakectl resolve <client_id> [--fingerprint] | resolve --global
  docintakectl annotate <client_id>
  docintakectl prompt <client_id> [--fields a,b] [--tags x,y] [--param tag.name=value] [--summary true|false]
  docintakectl request <client_id> [same flags as prompt]
  docintakectl normalize <client_id> --response reply.txt [--ext .pdf]
  docintakectl validate <format> <value>
  docintakectl events
  docintakectl version

Global flags:
  --dir     Config directory (default from DOCINTAKE_CONFIG_DIR)
  --store   file or redis (default from DOCINTAKE_STORE)
`)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
