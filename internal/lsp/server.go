package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/config"
	"github.com/leapstack-labs/macroscope/internal/pipeline"
	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/pkg/engine"
)

// JSON-RPC error codes.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Options configures a Server.
type Options struct {
	// Adapter parses every document. When nil the engine is built from the
	// macroscope.yaml found above the client's root at initialize.
	Adapter *adapter.Adapter

	Scheduler scheduler.Config
	Recursive bool
	Logger    *slog.Logger
}

// Server implements the Language Server Protocol for Macroscope.
type Server struct {
	// Document management
	documents *DocumentStore

	sessionsMu sync.Mutex
	sessions   map[string]*session

	// Parsing
	adapter   *adapter.Adapter
	scheduler scheduler.Config
	recursive *pipeline.Flag

	// Project context
	projectRoot string
	loadErr     error
	initialized bool

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger *slog.Logger

	// Lifecycle state
	stateMu  sync.RWMutex
	shutdown bool
	exited   bool
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sched := opts.Scheduler
	if sched.Logger == nil {
		sched.Logger = logger
	}
	return &Server{
		documents: NewDocumentStore(),
		sessions:  make(map[string]*session),
		adapter:   opts.Adapter,
		scheduler: sched,
		recursive: pipeline.NewFlag(opts.Recursive),
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
	}
}

// Run processes JSON-RPC messages until the client sends exit or closes
// the stream. Every document pipeline is closed before Run returns.
func (s *Server) Run() error {
	s.logger.Info("Macroscope LSP server starting")
	defer s.closeSessions()

	for {
		if s.hasExited() {
			return nil
		}

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Info("Client disconnected")
				return nil
			}
			s.logger.Error("Error reading message", "error", err)
			continue
		}

		if err := s.handleMessage(msg); err != nil {
			s.logger.Error("Error handling message", "method", msg.Method, "error", err)
		}
	}
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// readMessage reads a JSON-RPC message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}

		if lengthStr, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("error parsing message: %w", err)
	}

	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, err *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if err != nil {
		msg.Error = err
	} else {
		resultBytes, _ := json.Marshal(result)
		msg.Result = resultBytes
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// writeMessage writes a JSON-RPC message to the output stream. Render
// notifications come from scheduler goroutines, so writes are serialized.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Error marshaling message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

func invalidParams(err error) *JSONRPCError {
	return &JSONRPCError{Code: codeInvalidParams, Message: err.Error()}
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("Received", "method", msg.Method)

	if s.isShutdown() && msg.Method != "exit" {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidRequest, Message: "server is shut down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(msg)
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		return s.handleExit(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return nil
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case MethodSyntaxTree:
		return s.handleSyntaxTree(msg)
	case MethodExpansions:
		return s.handleExpansions(msg)
	case MethodSetRecursive:
		return s.handleSetRecursive(msg)
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, invalidParams(err))
		return err
	}

	s.projectRoot = URIToPath(params.RootURI)
	s.logger.Info("Project root", "path", s.projectRoot)

	if s.adapter == nil {
		s.loadEngineFromConfig()
	}
	if params.InitializationOptions.Recursive != nil {
		s.recursive.Set(*params.InitializationOptions.Recursive)
	}

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{"!"},
			},
			HoverProvider: true,
			CodeActionProvider: &CodeActionOptions{
				CodeActionKinds: []CodeActionKind{CodeActionKindRefactorInline},
			},
			ExecuteCommandProvider: &ExecuteCommandOptions{
				Commands: []string{CommandToggleRecursive},
			},
		},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

// loadEngineFromConfig builds the adapter from the project's
// macroscope.yaml. Without a usable config the default engine is used and
// the error is reported once the client is initialized.
func (s *Server) loadEngineFromConfig() {
	root := s.projectRoot
	if found := config.FindProjectRoot(root); found != "" {
		root = found
	}

	cfg, err := config.LoadFromDir(root)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		s.loadErr = err
		s.logger.Warn("Falling back to default project config", "root", root, "error", err)
		cfg = &config.ProjectConfig{}
		cfg.ApplyDefaults()
	}

	eng, err := engine.New(cfg.Engine, s.logger)
	if err != nil {
		s.loadErr = err
		s.logger.Error("Failed to create engine", "engine", cfg.Engine.Type, "error", err)
		return
	}
	s.adapter = adapter.New(eng, s.logger)
	s.recursive.Set(cfg.Recursive)
	if s.scheduler.MinInterval == 0 {
		s.scheduler.MinInterval = cfg.Scheduler.MinInterval
	}
	s.logger.Info("Loaded engine from project config", "engine", eng.Name(), "root", root)
}

func (s *Server) handleInitialized(_ *JSONRPCMessage) error {
	s.initialized = true
	s.logger.Info("Server initialized")

	if s.loadErr != nil {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeWarning,
			Message: fmt.Sprintf("Macroscope could not load %s: %v", config.ConfigFileName, s.loadErr),
		})
	}
	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.stateMu.Lock()
	s.shutdown = true
	s.stateMu.Unlock()

	s.closeSessions()
	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("Server shutdown")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.stateMu.Lock()
	s.exited = true
	s.stateMu.Unlock()

	s.logger.Info("Server exit")
	return nil
}

func (s *Server) isShutdown() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.shutdown
}

func (s *Server) hasExited() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.exited
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	item := params.TextDocument
	s.documents.Open(item.URI, item.Text, item.Version)
	s.logger.Info("Opened", "uri", item.URI)

	return s.openSession(item.URI, item.Text, item.Version)
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	uri := params.TextDocument.URI
	s.closeSession(uri)
	s.documents.Close(uri)
	s.logger.Info("Closed", "uri", uri)

	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []Diagnostic{},
	})
	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}

	// Full sync: the last change holds the whole document.
	uri := params.TextDocument.URI
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	version := params.TextDocument.Version
	if !s.documents.Update(uri, text, version) {
		return fmt.Errorf("change for unopened document %s", uri)
	}

	if sess := s.session(uri); sess != nil {
		sess.edit(text, version)
	}
	return nil
}

// --- Macroscope requests ---

func (s *Server) handleSyntaxTree(msg *JSONRPCMessage) error {
	var params DocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, invalidParams(err))
		return err
	}

	sess := s.session(params.TextDocument.URI)
	if sess == nil {
		s.sendResponse(msg.ID, nil, notOpen(params.TextDocument.URI))
		return nil
	}
	s.sendResponse(msg.ID, SyntaxTreeResult{
		Version:     sess.renderedVersion(),
		SyntaxNodes: sess.view.Syntax(),
	}, nil)
	return nil
}

func (s *Server) handleExpansions(msg *JSONRPCMessage) error {
	var params DocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, invalidParams(err))
		return err
	}

	sess := s.session(params.TextDocument.URI)
	if sess == nil {
		s.sendResponse(msg.ID, nil, notOpen(params.TextDocument.URI))
		return nil
	}
	s.sendResponse(msg.ID, ExpansionsResult{
		Version:    sess.renderedVersion(),
		Expansions: nonNilNodes(sess.view.Nodes()),
		MacroRules: nonNilStrings(sess.view.Rules()),
	}, nil)
	return nil
}

func (s *Server) handleSetRecursive(msg *JSONRPCMessage) error {
	var params SetRecursiveParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, invalidParams(err))
		}
		return err
	}

	s.setRecursive(params.Recursive)
	if msg.ID != nil {
		s.sendResponse(msg.ID, nil, nil)
	}
	return nil
}

func (s *Server) handleExecuteCommand(msg *JSONRPCMessage) error {
	var params ExecuteCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, invalidParams(err))
		return err
	}

	switch params.Command {
	case CommandToggleRecursive:
		on := s.recursive.Toggle()
		s.renderAll()
		s.sendResponse(msg.ID, SetRecursiveParams{Recursive: on}, nil)
	default:
		s.sendResponse(msg.ID, nil, &JSONRPCError{
			Code:    codeInvalidParams,
			Message: "unknown command: " + params.Command,
		})
	}
	return nil
}

// setRecursive switches the recursion flag shared by every document and
// schedules a render for each one when it changed.
func (s *Server) setRecursive(on bool) {
	if s.recursive.Set(on) {
		s.renderAll()
	}
}

func (s *Server) renderAll() {
	s.logger.Info("Recursive expansion", "enabled", s.recursive.Checked())
	for _, sess := range s.allSessions() {
		sess.pipeline.Notify()
	}
}

func notOpen(uri string) *JSONRPCError {
	return &JSONRPCError{Code: codeInvalidParams, Message: "document is not open: " + uri}
}
