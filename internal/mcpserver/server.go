// Package mcpserver exposes the persona over the Model Context Protocol so
// other agents can read the introduction and ask questions.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/domain/chat"
	"github.com/mmiller-dev/folio/internal/domain/persona"
	"github.com/mmiller-dev/folio/internal/domain/reply"
	"github.com/mmiller-dev/folio/internal/infra/llm"
	"github.com/mmiller-dev/folio/internal/version"
)

const (
	IntroURI = "persona://intro"
	ToolAsk  = "ask"

	mimeMarkdown = "text/markdown"
)

var (
	ErrEmptyQuestion = errors.New("mcpserver: question is required")

	errNoAnswer = errors.New("Failed to get response from AI") //nolint:staticcheck // shown verbatim to the caller
)

// Sender is satisfied by *chat.Service.
type Sender interface {
	Send(ctx context.Context, provider string, delivery chat.Delivery, history []llm.Message) (*reply.Reply, error)
}

type AskInput struct {
	Question string `json:"question" jsonschema:"a question about the persona's professional background"`
}

type AskOutput struct {
	Answer string `json:"answer"`
}

// Server wraps an mcp.Server with the persona resource and the ask tool.
type Server struct {
	mcp      *mcp.Server
	chat     Sender
	provider string
	intro    string
	logger   zerolog.Logger
}

// New registers the persona resource and the ask tool. provider selects the
// model answering ask; empty means the router default.
func New(doc *persona.Document, sender Sender, provider string, logger zerolog.Logger) *Server {
	s := &Server{
		mcp:      mcp.NewServer(&mcp.Implementation{Name: "folio", Version: version.Version}, nil),
		chat:     sender,
		provider: provider,
		intro:    persona.IntroMessage(doc),
		logger:   logger,
	}

	s.mcp.AddResource(&mcp.Resource{
		URI:         IntroURI,
		Name:        "intro",
		Title:       doc.Name + " - introduction",
		Description: "Markdown introduction covering experience, skills and education.",
		MIMEType:    mimeMarkdown,
	}, s.readIntro)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolAsk,
		Description: fmt.Sprintf("Ask %s a question about their professional experience.", doc.FirstName()),
	}, s.ask)

	return s
}

// MCP returns the underlying server, for transports other than stdio.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// RunStdio serves over stdin/stdout until ctx ends or the client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}

func (s *Server) readIntro(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if req.Params.URI != IntroURI {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: IntroURI, MIMEType: mimeMarkdown, Text: s.intro}},
	}, nil
}

func (s *Server) ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, AskOutput{}, ErrEmptyQuestion
	}

	rep, err := s.chat.Send(ctx, s.provider, chat.Batched, []llm.Message{{Role: llm.RoleUser, Content: question}})
	if err != nil {
		s.logger.Error().Err(err).Msg("mcp ask failed")
		return nil, AskOutput{}, userFacing(err)
	}
	answer, err := rep.Collect(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("mcp ask reply failed")
		return nil, AskOutput{}, userFacing(err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: answer}},
	}, AskOutput{Answer: answer}, nil
}

// userFacing hides vendor payloads; only credential hints are passed through.
func userFacing(err error) error {
	var ce *llm.CredentialsError
	if errors.As(err, &ce) {
		return ce
	}
	return errNoAnswer
}
