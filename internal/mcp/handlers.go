package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/npbot/npbot/internal/answer"
	"github.com/npbot/npbot/internal/fund"
	"github.com/npbot/npbot/internal/refresh"
	"github.com/npbot/npbot/internal/store"
)

// makeAskHandler creates the ask_fund tool handler. The answer pipeline's
// normal outcomes (blank query, empty corpus) come back as messages, not
// tool errors.
func makeAskHandler(answerer *answer.Answerer) func(
	context.Context, *mcp.CallToolRequest, AskFundInput,
) (*mcp.CallToolResult, AskFundOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskFundInput) (
		*mcp.CallToolResult, AskFundOutput, error,
	) {
		ans, err := answerer.AnswerQuery(ctx, input.Query)
		switch {
		case err == nil:
			return nil, AskFundOutput{
				Answer:     ans.Text,
				SourceURL:  ans.SourceURL,
				SchemeCode: ans.SchemeCode,
				Confidence: string(ans.Confidence),
			}, nil
		case errors.Is(err, answer.ErrInvalidQuery):
			return nil, AskFundOutput{Message: "Query must not be empty."}, nil
		case errors.Is(err, answer.ErrNoData):
			return nil, AskFundOutput{Message: "No scheme data available yet. Run a full refresh first."}, nil
		case errors.Is(err, answer.ErrAnswerIntegrity):
			return nil, AskFundOutput{Message: "Could not produce a verified answer for this query."}, nil
		default:
			return nil, AskFundOutput{}, fmt.Errorf("answer query: %w", err)
		}
	}
}

// makeGetSchemeHandler creates the get_scheme tool handler.
func makeGetSchemeHandler(st *store.ChunkedStore) func(
	context.Context, *mcp.CallToolRequest, GetSchemeInput,
) (*mcp.CallToolResult, GetSchemeOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetSchemeInput) (
		*mcp.CallToolResult, GetSchemeOutput, error,
	) {
		rec, err := st.GetScheme(input.SchemeCode)
		if err != nil {
			return nil, GetSchemeOutput{}, fmt.Errorf("get scheme: %w", err)
		}
		if rec == nil {
			return nil, GetSchemeOutput{Found: false, SchemeCode: input.SchemeCode}, nil
		}

		return nil, GetSchemeOutput{
			Found:            true,
			SchemeCode:       rec.SchemeCode,
			SchemeName:       rec.SchemeName,
			Category:         rec.Category,
			NAV:              rec.NAV,
			NAVDate:          rec.NAVDate,
			ValidationStatus: string(rec.ValidationStatus),
			SourceURL:        rec.SchemeWebpageURL,
			LastUpdated:      rec.LastUpdated,
			Text:             fund.RenderSchemeText(rec),
		}, nil
	}
}

// makeListHandler creates the list_schemes tool handler.
func makeListHandler(st *store.ChunkedStore) func(
	context.Context, *mcp.CallToolRequest, ListSchemesInput,
) (*mcp.CallToolResult, ListSchemesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListSchemesInput) (
		*mcp.CallToolResult, ListSchemesOutput, error,
	) {
		md, err := st.Metadata()
		if err != nil {
			return nil, ListSchemesOutput{}, fmt.Errorf("read metadata: %w", err)
		}

		schemes := make([]SchemeEntry, 0, len(md.Schemes))
		for _, s := range md.Schemes {
			schemes = append(schemes, SchemeEntry{
				SchemeCode: s.SchemeCode,
				SchemeName: s.SchemeName,
				Category:   s.Category,
			})
		}

		return nil, ListSchemesOutput{Schemes: schemes, Count: len(schemes)}, nil
	}
}

// makeStatusHandler creates the refresh_status tool handler. A nil scheduler
// (stdio deployments without the daemon) reports store counts only.
func makeStatusHandler(st *store.ChunkedStore, sched *refresh.Scheduler) func(
	context.Context, *mcp.CallToolRequest, RefreshStatusInput,
) (*mcp.CallToolResult, RefreshStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RefreshStatusInput) (
		*mcp.CallToolResult, RefreshStatusOutput, error,
	) {
		md, err := st.Metadata()
		if err != nil {
			return nil, RefreshStatusOutput{}, fmt.Errorf("read metadata: %w", err)
		}

		counts := make(map[string]int, len(md.ValidationCounts))
		for status, n := range md.ValidationCounts {
			counts[string(status)] = n
		}

		out := RefreshStatusOutput{
			TotalSchemes:     md.TotalSchemes,
			TotalFactsheets:  md.TotalFactsheets,
			TotalChunks:      md.TotalChunks,
			ValidationCounts: counts,
		}
		if md.LastFastRefresh != nil {
			out.LastFastRefresh = md.LastFastRefresh.Format(time.RFC3339)
		}
		if md.LastFullRefresh != nil {
			out.LastFullRefresh = md.LastFullRefresh.Format(time.RFC3339)
		}
		if sched != nil {
			out.FastRun = runSummary(sched, refresh.RunFast)
			out.FullRun = runSummary(sched, refresh.RunFull)
		}

		return nil, out, nil
	}
}

func runSummary(sched *refresh.Scheduler, kind refresh.RunKind) *RunSummary {
	report, running := sched.LastReport(kind)
	if report == nil && !running {
		return nil
	}
	summary := &RunSummary{Running: running}
	if report != nil {
		summary.Status = string(report.Status)
		summary.StartedAt = report.StartedAt.Format(time.RFC3339)
		summary.Attempted = report.Attempted
		summary.Succeeded = report.Succeeded
		summary.Failed = len(report.Failures)
	}
	return summary
}
