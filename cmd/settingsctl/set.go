// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/united-manufacturing-hub/umh-datastore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/umh-datastore/pkg/settings"
)

func newSetCmd(a *app) *cobra.Command {
	var (
		tx       string
		strength string
		file     string
	)

	cmd := &cobra.Command{
		Use:   "set [key=value ...]",
		Short: "Write settings into a transaction",
		Long: `set writes settings into the transaction named by --tx. Keys are relative to
"settings." and may be dotted. Values are parsed as JSON and taken as plain strings
when they are not valid JSON. A JSON document can be given with --file instead.

Example:
  settingsctl set --tx boot motd=hello network.mtu=1500
  settingsctl set --tx boot --strength weak ntp.enabled=true
  settingsctl set --tx boot --file settings.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := settings.ParseStrength(strength)
			if err != nil {
				return a.fail(err)
			}

			document, err := buildDocument(ctx, a.fs, file, args)
			if err != nil {
				return a.fail(err)
			}

			return a.withController(ctx, true, func(c *settings.Controller) error {
				written, err := c.SetSettings(ctx, document, tx, s)
				if err != nil {
					return err
				}

				return a.print(map[string]any{"transaction": tx, "keys": written.Names()})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&tx, "tx", "", "Transaction to write into")
	flags.StringVar(&strength, "strength", string(settings.DefaultStrength), "Strength of the written settings (strong or weak)")
	flags.StringVar(&file, "file", "", "Read a JSON settings document from this file")
	_ = cmd.MarkFlagRequired("tx")

	return cmd
}

func buildDocument(ctx context.Context, fs filesystem.Service, file string, assignments []string) (map[string]any, error) {
	document := map[string]any{}

	if file != "" {
		data, err := fs.ReadFile(ctx, file)
		if err != nil {
			return nil, err
		}

		if err := decodeJSON(data, &document); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errInvalidArgument, file, err)
		}
	}

	for _, assignment := range assignments {
		key, value, err := parseAssignment(assignment)
		if err != nil {
			return nil, err
		}

		document[key] = value
	}

	if len(document) == 0 {
		return nil, fmt.Errorf("%w: nothing to set", errInvalidArgument)
	}

	return document, nil
}

// parseAssignment splits key=value. A leading "settings." is dropped from the key.
func parseAssignment(assignment string) (string, any, error) {
	key, raw, ok := strings.Cut(assignment, "=")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("%w: expected key=value, got %q", errInvalidArgument, assignment)
	}

	key = strings.TrimPrefix(key, settings.Prefix)

	var value any
	if err := decodeJSON([]byte(raw), &value); err != nil {
		return key, raw, nil
	}

	return key, value, nil
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return err
	}

	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON value")
	}

	return nil
}
