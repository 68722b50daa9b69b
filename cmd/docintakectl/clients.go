package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/docintake/docintake/core/extraction"
	"github.com/docintake/docintake/core/infra/logging"
	"github.com/docintake/docintake/core/infra/secrets"
	"github.com/docintake/docintake/core/store"
	"github.com/docintake/docintake/core/tenants"
)

func runInitCmd(args []string, out io.Writer) error {
	fs := newFlagSet("init")
	force := fs.Bool("force", false, "overwrite an existing global config")
	return withApp(fs, args, func(ctx context.Context, a *app) error {
		if _, err := a.store.ReadGlobal(ctx); err == nil && !*force {
			return errors.New("global config already exists (use --force to overwrite)")
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		writer, ok := a.store.(store.GlobalWriter)
		if !ok {
			return fmt.Errorf("store %s cannot write the global config", a.cfg.Store)
		}
		if err := writer.WriteGlobal(ctx, defaultGlobal()); err != nil {
			return err
		}
		if fsStore, ok := a.store.(*store.FileStore); ok {
			if err := os.MkdirAll(filepath.Join(fsStore.Root(), "clients"), 0o755); err != nil {
				return fmt.Errorf("create client registry: %w", err)
			}
		}
		logging.Info("docintakectl", "initialized config", "store", a.cfg.Store, "dir", a.cfg.ConfigDir)
		_, err := fmt.Fprintln(out, "ok")
		return err
	})
}

// clientSummary is one line of `clients list`.
type clientSummary struct {
	ClientID   string `json:"clientId"`
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	FolderPath string `json:"folderPath"`
	Model      string `json:"model,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`
}

func runClientsCmd(args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	switch args[0] {
	case "list":
		fs := newFlagSet("clients list")
		enabled := fs.Bool("enabled", false, "only enabled clients")
		return withApp(fs, args[1:], func(ctx context.Context, a *app) error {
			list := a.resolver.ListAll
			if *enabled {
				list = a.resolver.ListEnabled
			}
			reg, err := list(ctx)
			if err != nil {
				return err
			}
			if reg == nil {
				return extraction.ErrNoClientConfig
			}
			ids := make([]string, 0, len(reg.Clients))
			for id := range reg.Clients {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			rows := make([]clientSummary, 0, len(ids))
			for _, id := range ids {
				rec := reg.Clients[id]
				rows = append(rows, clientSummary{ClientID: id, Name: rec.Name, Enabled: rec.Enabled, FolderPath: rec.FolderPath, Model: rec.Model,
					APIKey: string(secrets.Status(rec.APIKeyEnvVar))})
			}
			return printJSON(out, rows)
		})
	case "create", "update":
		fs := newFlagSet("clients " + args[0])
		inline := fs.String("json", "", "record JSON")
		file := fs.String("file", "", "record JSON file")
		return withApp(fs, args[1:], func(ctx context.Context, a *app) error {
			if fs.NArg() < 1 {
				return errors.New("client id required")
			}
			payload, err := readPayload(*inline, *file)
			if err != nil {
				return err
			}
			write := a.resolver.Create
			if args[0] == "update" {
				write = a.resolver.Update
			}
			var rec *extraction.ClientRecord
			err = a.locked(ctx, fs.Arg(0), func() error {
				rec, err = write(ctx, fs.Arg(0), payload)
				return err
			})
			if err != nil {
				return err
			}
			return printJSON(out, rec)
		})
	case "delete":
		fs := newFlagSet("clients delete")
		return withApp(fs, args[1:], func(ctx context.Context, a *app) error {
			if fs.NArg() < 1 {
				return errors.New("client id required")
			}
			if err := a.locked(ctx, fs.Arg(0), func() error {
				return a.resolver.Delete(ctx, fs.Arg(0))
			}); err != nil {
				return err
			}
			_, err := fmt.Fprintln(out, "deleted", fs.Arg(0))
			return err
		})
	default:
		return errUsage
	}
}

func runOverridesCmd(args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	switch args[0] {
	case "save":
		fs := newFlagSet("overrides save")
		inline := fs.String("json", "", "override JSON")
		file := fs.String("file", "", "override JSON file")
		return withApp(fs, args[1:], func(ctx context.Context, a *app) error {
			if fs.NArg() < 2 {
				return fmt.Errorf("usage: overrides save <client_id> <%v>", tenants.Sections())
			}
			payload, err := readPayload(*inline, *file)
			if err != nil {
				return err
			}
			var rec *extraction.ClientRecord
			err = a.locked(ctx, fs.Arg(0), func() error {
				rec, err = a.resolver.SaveOverrides(ctx, fs.Arg(0), fs.Arg(1), payload)
				return err
			})
			if err != nil {
				return err
			}
			return printJSON(out, rec)
		})
	case "remove":
		fs := newFlagSet("overrides remove")
		return withApp(fs, args[1:], func(ctx context.Context, a *app) error {
			if fs.NArg() < 2 {
				return fmt.Errorf("usage: overrides remove <client_id> <%v>", tenants.Sections())
			}
			var rec *extraction.ClientRecord
			err := a.locked(ctx, fs.Arg(0), func() error {
				var err error
				rec, err = a.resolver.RemoveOverrides(ctx, fs.Arg(0), fs.Arg(1))
				return err
			})
			if err != nil {
				return err
			}
			return printJSON(out, rec)
		})
	default:
		return errUsage
	}
}
