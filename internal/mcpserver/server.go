// Package mcpserver exposes the reminder store as MCP tools so assistants
// can read and manage reminders over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmhodges/clock"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"reminders/internal/jobs"
	"reminders/internal/reminder"
)

const (
	serverName = "reminders"

	defaultNearRadius = 1000.0
)

type Server struct {
	mcpServer *server.MCPServer
	reminders *reminder.Store
	jobs      *jobs.Repo
	clock     clock.Clock
}

func NewServer(reminders *reminder.Store, jobRepo *jobs.Repo, clk clock.Clock, version string) *Server {
	s := &Server{
		reminders: reminders,
		jobs:      jobRepo,
		clock:     clk,
	}
	s.mcpServer = server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	s.registerTools()
	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Add a reminder. Dates are YYYY-MM-DD, times HH:MM or HH:MM:SS."),
			mcp.WithString("text", mcp.Required(), mcp.Description("What to be reminded of")),
			mcp.WithString("due_date", mcp.Description("Due date, YYYY-MM-DD")),
			mcp.WithString("due_time", mcp.Description("Due time, HH:MM[:SS]")),
			mcp.WithString("priority", mcp.Description("urgent, important, chill (default), someday or waiting")),
			mcp.WithString("category", mcp.Description("Free-form category")),
			mcp.WithString("location_name", mcp.Description("Place name")),
			mcp.WithNumber("location_lat", mcp.Description("Latitude")),
			mcp.WithNumber("location_lng", mcp.Description("Longitude")),
			mcp.WithNumber("location_radius", mcp.Description("Trigger radius in metres (default 100)")),
		),
		s.handleAdd,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List reminders, newest first"),
			mcp.WithString("status", mcp.Description("pending, completed or snoozed")),
			mcp.WithString("category", mcp.Description("Exact category")),
			mcp.WithString("priority", mcp.Description("Exact priority")),
			mcp.WithNumber("limit", mcp.Description("Max rows (default 100)")),
		),
		s.handleList,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_reminder",
			mcp.WithDescription("Fetch one reminder by id"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder id")),
		),
		s.handleGet,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Mark a reminder as completed"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder id")),
		),
		s.handleComplete,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder permanently"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder id")),
		),
		s.handleDelete,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("update_reminder",
			mcp.WithDescription("Update reminder fields; omitted fields are left alone"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder id")),
			mcp.WithString("text", mcp.Description("New text")),
			mcp.WithString("due_date", mcp.Description("New due date, YYYY-MM-DD")),
			mcp.WithString("due_time", mcp.Description("New due time, HH:MM[:SS]")),
			mcp.WithString("priority", mcp.Description("New priority")),
			mcp.WithString("category", mcp.Description("New category")),
			mcp.WithString("status", mcp.Description("pending, completed or snoozed")),
			mcp.WithString("snoozed_until", mcp.Description("RFC3339 wake-up time when snoozing")),
		),
		s.handleUpdate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("near_location",
			mcp.WithDescription("Reminders with a location within radius metres of a point, closest first"),
			mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude")),
			mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude")),
			mcp.WithNumber("radius", mcp.Description("Search radius in metres (default 1000)")),
		),
		s.handleNear,
	)
}

func optString(req mcp.CallToolRequest, key string) *string {
	if v := req.GetString(key, ""); v != "" {
		return &v
	}
	return nil
}

func optFloat(req mcp.CallToolRequest, key string) *float64 {
	if _, ok := req.GetArguments()[key]; !ok {
		return nil
	}
	v := req.GetFloat(key, 0)
	return &v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) handleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src := reminder.SourceAPI
	p := reminder.Patch{
		Text:         optString(req, "text"),
		DueDate:      optString(req, "due_date"),
		DueTime:      optString(req, "due_time"),
		Category:     optString(req, "category"),
		LocationName: optString(req, "location_name"),
		LocationLat:  optFloat(req, "location_lat"),
		LocationLng:  optFloat(req, "location_lng"),
		Source:       &src,
	}
	if v := optString(req, "priority"); v != nil {
		pr := reminder.Priority(*v)
		p.Priority = &pr
	}
	if v := optFloat(req, "location_radius"); v != nil {
		r := int(*v)
		p.LocationRadius = &r
	}
	if p.Text == nil {
		return mcp.NewToolResultError("text is required"), nil
	}

	r, err := p.Build("", s.clock.Now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.reminders.Insert(ctx, &r); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add reminder: %v", err)), nil
	}
	return jsonResult(r)
}

func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var f reminder.Filter
	if v := optString(req, "status"); v != nil {
		st := reminder.Status(*v)
		f.Status = &st
	}
	if v := optString(req, "priority"); v != nil {
		pr := reminder.Priority(*v)
		f.Priority = &pr
	}
	f.Category = optString(req, "category")
	f.Limit = req.GetInt("limit", 0)

	rs, err := s.reminders.List(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reminders: %v", err)), nil
	}
	if len(rs) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}
	return jsonResult(rs)
}

func (s *Server) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.reminders.Get(ctx, id)
	if err != nil {
		return errorResult("get", id, err), nil
	}
	return jsonResult(r)
}

func (s *Server) handleComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st := reminder.StatusCompleted
	r, err := s.update(ctx, id, reminder.Patch{Status: &st})
	if err != nil {
		return errorResult("complete", id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s marked as completed.", r.ID)), nil
}

func (s *Server) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.reminders.Delete(ctx, id); err != nil {
		return errorResult("delete", id, err), nil
	}
	if err := s.jobs.CancelSnoozeWake(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reminder deleted but wake-up not cancelled: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s deleted.", id)), nil
}

func (s *Server) handleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p := reminder.Patch{
		Text:     optString(req, "text"),
		DueDate:  optString(req, "due_date"),
		DueTime:  optString(req, "due_time"),
		Category: optString(req, "category"),
	}
	if v := optString(req, "priority"); v != nil {
		pr := reminder.Priority(*v)
		p.Priority = &pr
	}
	if v := optString(req, "status"); v != nil {
		st := reminder.Status(*v)
		p.Status = &st
	}
	if v := optString(req, "snoozed_until"); v != nil {
		t, err := parseTimestamp(*v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid snoozed_until: %v", err)), nil
		}
		p.SnoozedUntil = &t
	}
	if p.Empty() {
		return mcp.NewToolResultError("no fields to update"), nil
	}

	r, err := s.update(ctx, id, p)
	if err != nil {
		return errorResult("update", id, err), nil
	}
	return jsonResult(r)
}

func (s *Server) update(ctx context.Context, id string, p reminder.Patch) (reminder.Reminder, error) {
	r, err := s.reminders.Update(ctx, id, p)
	if err != nil {
		return reminder.Reminder{}, err
	}
	if err := s.jobs.Schedule(ctx, r); err != nil {
		return reminder.Reminder{}, fmt.Errorf("schedule wake-up: %w", err)
	}
	return r, nil
}

func (s *Server) handleNear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lng, err := req.RequireFloat("lng")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	radius := req.GetFloat("radius", defaultNearRadius)
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || radius <= 0 {
		return mcp.NewToolResultError("lat, lng or radius out of range"), nil
	}

	rs, err := s.reminders.Near(ctx, lat, lng, radius)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search reminders: %v", err)), nil
	}
	if len(rs) == 0 {
		return mcp.NewToolResultText("No reminders nearby."), nil
	}
	return jsonResult(rs)
}

func errorResult(op, id string, err error) *mcp.CallToolResult {
	if errors.Is(err, reminder.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("reminder %s not found", id))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s reminder: %v", op, err))
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
