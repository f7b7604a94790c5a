/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"scenewriter/internal/backend"
	"scenewriter/internal/config"
	"scenewriter/internal/domain"
	"scenewriter/internal/server"
	"scenewriter/internal/storage"
	"scenewriter/internal/stylepack"
)

func (a *app) cmdServe(ctx context.Context, args []string) error {
	fs := newFlagSet("serve", a.out)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	usePG := fs.Bool("pg", false, "serve projects from the postgres scene store")
	style := fs.String("style", a.cfg.Export.StyleFile, "house style name or YAML file")
	author := fs.String("author", a.cfg.Export.Author, "default author for project exports")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) > 1 {
		return usagef("serve takes at most one <dir>")
	}
	cfg := server.Config{Addr: *addr, Secret: config.ServerSecret(), Author: *author, Now: a.now}
	root := ""
	switch {
	case *usePG || (len(pos) == 0 && a.cfg.Backend.PostgresDSN != ""):
		src, err := a.source(ctx)
		if err != nil {
			return err
		}
		defer src.Close()
		cfg.Store = src
	case len(pos) == 1:
		h, err := a.open(pos[0])
		if err != nil {
			return err
		}
		root = h.Root
		cfg.Store = server.DirStore{Root: h.Root}
	}
	hs, err := stylepack.Resolve(root, *style)
	if err != nil {
		return err
	}
	cfg.Style = &hs
	if cfg.Secret == "" {
		a.log.Warn("serving without authentication", "addr", *addr)
	}
	fmt.Fprintf(a.out, "Listening on %s\n", *addr)
	return server.New(cfg).ListenAndServe(ctx)
}

func (a *app) cmdToken(args []string) error {
	fs := newFlagSet("token", a.out)
	subject := fs.String("subject", "", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 0 {
		return usagef("token takes no arguments")
	}
	if *ttl <= 0 {
		return usagef("ttl must be positive")
	}
	secret := config.ServerSecret()
	if secret == "" {
		return fmt.Errorf("no server secret (set %s or run: scenewriter secret set server-secret <value>)", config.EnvServerSecret)
	}
	tok, err := server.SignToken(secret, *subject, a.now().Add(*ttl))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tok)
	return nil
}

func (a *app) cmdProjects(ctx context.Context, args []string) error {
	fs := newFlagSet("projects", a.out)
	remote := fs.Bool("remote", false, "list from the configured scenewriter server")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}
	var list []backend.ProjectSummary
	var err error
	if *remote {
		list, err = a.client().ListProjects(ctx)
	} else {
		var src *backend.Source
		if src, err = a.source(ctx); err != nil {
			return err
		}
		defer src.Close()
		list, err = src.ListProjects(ctx)
	}
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tGROUPING\tSCENES\tVERSION\tUPDATED")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", p.ID, p.Name, p.Grouping, p.Scenes, p.Version, p.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// cmdPull imports a project from the scene store into a local directory,
// replacing the local bundle when one exists.
func (a *app) cmdPull(ctx context.Context, args []string) error {
	fs := newFlagSet("pull", a.out)
	remote := fs.Bool("remote", false, "fetch from the configured scenewriter server")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usagef("pull requires <dir> <project-id>")
	}
	var b *domain.Bundle
	if *remote {
		b, err = a.client().FetchBundle(ctx, pos[1])
	} else {
		var src *backend.Source
		if src, err = a.source(ctx); err != nil {
			return err
		}
		defer src.Close()
		b, err = src.LoadBundle(ctx, pos[1])
	}
	if err != nil {
		return err
	}
	root, err := filepath.Abs(pos[0])
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(filepath.Join(root, storage.BundleFileName)); statErr == nil {
		h, err := a.open(root)
		if err != nil {
			return err
		}
		h.Bundle = *b
		*a.ph = *h
		if err := storage.Save(h); err != nil {
			return err
		}
	} else if errors.Is(statErr, os.ErrNotExist) {
		h, err := storage.InitProject(root, *b)
		if err != nil {
			return err
		}
		*a.ph = *h
	} else {
		return statErr
	}
	fmt.Fprintf(a.out, "Pulled %q (%d scenes) into %s\n", b.Project.Name, len(b.Scenes), root)
	return nil
}

func (a *app) cmdPush(ctx context.Context, args []string) error {
	fs := newFlagSet("push", a.out)
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usagef("push requires <dir>")
	}
	h, err := a.open(pos[0])
	if err != nil {
		return err
	}
	src, err := a.source(ctx)
	if err != nil {
		return err
	}
	defer src.Close()
	v, err := src.PushBundle(ctx, h.Bundle)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Pushed %q as version %d\n", h.Bundle.Project.Name, v)
	return nil
}

var secretNames = map[string]string{
	"backend-token":     config.SecretBackendToken,
	"postgres-password": config.SecretPostgresPassword,
	"server-secret":     config.SecretServerKey,
}

func (a *app) cmdSecret(args []string) error {
	if len(args) < 2 {
		return usagef("secret requires set|delete and a name")
	}
	name, ok := secretNames[args[1]]
	if !ok {
		return usagef("unknown secret %q (backend-token, postgres-password, server-secret)", args[1])
	}
	switch args[0] {
	case "set":
		if len(args) != 3 {
			return usagef("secret set requires a value")
		}
		if err := config.SetSecret(name, args[2]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Stored %s in the keychain.\n", args[1])
		return nil
	case "delete":
		if err := config.DeleteSecret(name); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Removed %s from the keychain.\n", args[1])
		return nil
	}
	return usagef("unknown secret action %q", args[0])
}

// cmdConfig prints the effective configuration and which keys the
// environment overrides.
func (a *app) cmdConfig() error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "# %s\n", path)
	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if _, err := a.out.Write(data); err != nil {
		return err
	}
	var over []string
	for _, k := range config.OverridableKeys() {
		if env, ok := config.EnvOverrideFor(k); ok {
			over = append(over, fmt.Sprintf("# %s <- %s", k, env))
		}
	}
	if len(over) > 0 {
		fmt.Fprintln(a.out, strings.Join(over, "\n"))
	}
	return nil
}
