// Copyright 2025 The ragmcp authors
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
	"context"
	"fmt"
	"sort"
)

// SyncCmd pushes the MCP tool catalog into the knowledge base and exits.
type SyncCmd struct{}

func (c *SyncCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.manager.Initialize(ctx, true); err != nil {
		return err
	}

	fmt.Println("Tool catalog synced to knowledge base.")
	return nil
}

// ToolsCmd lists everything currently indexed in the knowledge base.
type ToolsCmd struct{}

func (c *ToolsCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	return printIndexedTools(context.Background(), rt)
}

func printIndexedTools(ctx context.Context, rt *runtime) error {
	toolConfig, err := rt.index.QueryAll(ctx)
	if err != nil {
		return err
	}

	if len(toolConfig.Tools) == 0 {
		fmt.Println("No tools indexed.")
		return nil
	}

	fmt.Printf("Indexed tools (%d):\n", len(toolConfig.Tools))
	for _, entry := range toolConfig.Tools {
		spec := entry.ToolSpec
		fmt.Printf("  - %s: %s\n", spec.Name, spec.Description)

		params := parameterNames(spec.InputSchema.JSON)
		if len(params) > 0 {
			fmt.Printf("    parameters: %v\n", params)
		}
	}
	return nil
}

func parameterNames(schema map[string]any) []string {
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
