// Package lsp implements a minimal Language Server Protocol server for
// jqawk program files: full-document sync, compile-error diagnostics,
// and a one-line hover showing the kind and lexeme of the first token
// on the cursor's line.
package lsp

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/Alligator/jqawk/compiler/errors"
	"github.com/Alligator/jqawk/compiler/lexer"
	"github.com/Alligator/jqawk/internal/program"
)

// Server is a single stdio-connected LSP session. One jqawk program
// file is tracked per open document URI.
type Server struct {
	conn   jsonrpc2.Conn
	client protocol.Client
	logger *log.Logger

	mu   sync.Mutex
	docs map[string]string

	capabilities protocol.ServerCapabilities
	cancel       context.CancelFunc
}

// NewServer creates an LSP server advertising full-document sync and
// hover support.
func NewServer() *Server {
	return &Server{
		logger: log.New(os.Stderr, "[jqawk-lsp] ", log.LstdFlags),
		docs:   make(map[string]string),
		capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			HoverProvider: true,
		},
	}
}

// Run serves the LSP protocol over stdin/stdout until ctx is
// cancelled or an exit notification arrives.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	stream := jsonrpc2.NewStream(stdrwc{})
	conn := jsonrpc2.NewConn(stream)
	s.conn = conn

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		zapLogger = zap.NewNop()
	}
	s.client = protocol.ClientDispatcher(conn, zapLogger)

	conn.Go(ctx, s.handler())
	<-ctx.Done()
	return conn.Close()
}

func (s *Server) handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		switch req.Method() {
		case protocol.MethodInitialize:
			return s.handleInitialize(ctx, reply, req)
		case protocol.MethodInitialized:
			return reply(ctx, nil, nil)
		case protocol.MethodShutdown:
			return reply(ctx, nil, nil)
		case protocol.MethodExit:
			if err := reply(ctx, nil, nil); err != nil {
				s.logger.Printf("error replying to exit: %v", err)
			}
			if s.cancel != nil {
				s.cancel()
			}
			return nil
		case protocol.MethodTextDocumentDidOpen:
			return s.handleDidOpen(ctx, reply, req)
		case protocol.MethodTextDocumentDidChange:
			return s.handleDidChange(ctx, reply, req)
		case protocol.MethodTextDocumentDidClose:
			return s.handleDidClose(ctx, reply, req)
		case protocol.MethodTextDocumentHover:
			return s.handleHover(ctx, reply, req)
		default:
			return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
		}
	}
}

func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{Code: jsonrpc2.InvalidParams, Message: "bad initialize params"})
	}
	return reply(ctx, protocol.InitializeResult{
		Capabilities: s.capabilities,
		ServerInfo:   &protocol.ServerInfo{Name: "jqawk-lsp", Version: "v1"},
	}, nil)
}

func (s *Server) handleDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{Code: jsonrpc2.InvalidParams, Message: "bad didOpen params"})
	}
	docURI := string(params.TextDocument.URI)
	s.setDoc(docURI, params.TextDocument.Text)
	s.publishDiagnostics(ctx, docURI)
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{Code: jsonrpc2.InvalidParams, Message: "bad didChange params"})
	}
	if len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}
	docURI := string(params.TextDocument.URI)
	// Full document sync: the last change carries the whole text.
	s.setDoc(docURI, params.ContentChanges[len(params.ContentChanges)-1].Text)
	s.publishDiagnostics(ctx, docURI)
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{Code: jsonrpc2.InvalidParams, Message: "bad didClose params"})
	}
	docURI := string(params.TextDocument.URI)
	s.mu.Lock()
	delete(s.docs, docURI)
	s.mu.Unlock()
	// Clear any stale diagnostics now that nothing tracks this file.
	if s.client != nil {
		s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
			URI:         protocol.DocumentURI(docURI),
			Diagnostics: []protocol.Diagnostic{},
		})
	}
	return reply(ctx, nil, nil)
}

func (s *Server) handleHover(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.HoverParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{Code: jsonrpc2.InvalidParams, Message: "bad hover params"})
	}
	docURI := string(params.TextDocument.URI)
	source := s.doc(docURI)
	tok := tokenAtLine(source, int(params.Position.Line)+1)
	if tok == nil {
		return reply(ctx, nil, nil)
	}
	return reply(ctx, &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.PlainText,
			Value: tok.Kind.String() + " " + tok.String(),
		},
	}, nil)
}

func (s *Server) setDoc(docURI, text string) {
	s.mu.Lock()
	s.docs[docURI] = text
	s.mu.Unlock()
}

func (s *Server) doc(docURI string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[docURI]
}

// publishDiagnostics recompiles the document and reports either the
// single CompileError it produced or an empty diagnostic list.
func (s *Server) publishDiagnostics(ctx context.Context, docURI string) {
	if s.client == nil {
		return
	}
	source := s.doc(docURI)
	diags := []protocol.Diagnostic{}

	if _, err := program.CompileRules(source); err != nil {
		if ce, ok := err.(*errors.CompileError); ok {
			line := uint32(0)
			if ce.Line > 0 {
				line = uint32(ce.Line - 1)
			}
			diags = append(diags, protocol.Diagnostic{
				Range: protocol.Range{
					Start: protocol.Position{Line: line, Character: 0},
					End:   protocol.Position{Line: line, Character: 1000},
				},
				Severity: protocol.DiagnosticSeverityError,
				Source:   "jqawk",
				Message:  ce.Msg,
			})
		}
	}

	s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(docURI),
		Diagnostics: diags,
	})
}

// tokenAtLine returns the first token lexed from source whose Line
// matches line (1-indexed), used for the coarse hover: jqawk tokens
// don't carry a column, so hover resolves to line granularity.
func tokenAtLine(source string, line int) *lexer.Token {
	lex := lexer.New(source)
	for {
		t := lex.Next()
		if t.Kind == lexer.TOKEN_EOF || t.Kind == lexer.TOKEN_ERROR {
			return nil
		}
		if t.Line == line {
			tok := t
			return &tok
		}
		if t.Line > line {
			return nil
		}
	}
}

// stdrwc adapts stdin/stdout into an io.ReadWriteCloser for jsonrpc2.
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdrwc) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
