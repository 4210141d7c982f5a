// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the skill registry's tools over the Model Context
// Protocol, so external MCP clients can drive the garden directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/verdantlabs/verdant/pkg/conversation"
	"github.com/verdantlabs/verdant/pkg/skill"
)

// Server bridges the skill registry to an MCP server. Tool availability is
// contextual: a tool registered at startup may still refuse a call when its
// skill is gated off, surfaced as an error result.
type Server struct {
	mcpServer *server.MCPServer
	registry  *skill.Registry
	conv      *conversation.Context
}

// NewServer creates an MCP server over the given registry. The conversation
// context is the one tool gating is evaluated against, usually the live
// agent session.
func NewServer(name, version string, registry *skill.Registry, conv *conversation.Context) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version),
		registry:  registry,
		conv:      conv,
	}
}

// RegisterSkillTools registers every tool currently offered by the registry.
// Call after skills are registered; tools that appear later (contextual
// gating) need another call.
func (s *Server) RegisterSkillTools() error {
	for _, spec := range s.registry.AvailableTools(s.conv) {
		schema, err := json.Marshal(spec.Parameters)
		if err != nil {
			return fmt.Errorf("marshal schema for %s: %w", spec.Name, err)
		}
		tool := mcp.NewToolWithRawSchema(spec.Name, spec.Description, schema)
		name := spec.Name
		s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]any)
			return s.dispatch(ctx, name, args), nil
		})
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	exec := s.registry.ExecuteTool(ctx, name, args, s.conv)
	if !exec.Result.Success {
		return mcp.NewToolResultError(exec.Result.Message)
	}
	if len(exec.Result.Data) > 0 {
		if payload, err := json.Marshal(exec.Result.Data); err == nil {
			return mcp.NewToolResultText(exec.Result.Message + "\n" + string(payload))
		}
	}
	return mcp.NewToolResultText(exec.Result.Message)
}

// ServeStdio starts the server on stdio and blocks until the client
// disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
