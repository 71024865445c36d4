package rpc

import (
	"os"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// Builder constructs the request envelopes this client knows how to send.
// Construction is pure: the builder never allocates identifiers itself (the
// correlation table owns the counter) and never touches the wire. Every
// method returns the structured envelope together with its encoded frame.
type Builder struct {
	// LanguageID is sent in textDocument/didOpen.
	LanguageID protocol.LanguageIdentifier
}

// NewBuilder creates a builder for documents of the given language.
func NewBuilder(languageID string) *Builder {
	return &Builder{LanguageID: protocol.LanguageIdentifier(languageID)}
}

func (b *Builder) request(id int64, method string, params any) (Request, []byte, error) {
	req := Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}
	wire, err := Encode(req)
	if err != nil {
		return Request{}, nil, err
	}
	return req, wire, nil
}

func (b *Builder) notification(method string, params any) (Request, []byte, error) {
	return b.request(0, method, params)
}

// Initialize builds the initialize request. Capabilities are left empty on
// purpose: this client renders whatever the server sends and negotiates
// nothing.
func (b *Builder) Initialize(id int64, rootURI uri.URI) (Request, []byte, error) {
	params := protocol.InitializeParams{
		ProcessID: int32(os.Getpid()),
		RootURI:   rootURI,
		ClientInfo: &protocol.ClientInfo{
			Name: "lspwire",
		},
		Capabilities: protocol.ClientCapabilities{},
	}
	return b.request(id, protocol.MethodInitialize, params)
}

// DidOpen builds the textDocument/didOpen notification for the target
// document with its full text.
func (b *Builder) DidOpen(docURI uri.URI, text string) (Request, []byte, error) {
	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        docURI,
			LanguageID: b.LanguageID,
			Version:    1,
			Text:       text,
		},
	}
	return b.notification(protocol.MethodTextDocumentDidOpen, params)
}

// DidChange builds a full-content textDocument/didChange notification.
func (b *Builder) DidChange(docURI uri.URI, version int32, text string) (Request, []byte, error) {
	params := protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: docURI},
			Version:                version,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			{Text: text},
		},
	}
	return b.notification(protocol.MethodTextDocumentDidChange, params)
}

// Definition builds a textDocument/definition request for the zero-based
// position.
func (b *Builder) Definition(id int64, docURI uri.URI, pos protocol.Position) (Request, []byte, error) {
	params := protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
			Position:     pos,
		},
	}
	return b.request(id, protocol.MethodTextDocumentDefinition, params)
}

// References builds a textDocument/references request for the zero-based
// position. The declaration is included in the result set.
func (b *Builder) References(id int64, docURI uri.URI, pos protocol.Position) (Request, []byte, error) {
	params := protocol.ReferenceParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
			Position:     pos,
		},
		Context: protocol.ReferenceContext{IncludeDeclaration: true},
	}
	return b.request(id, protocol.MethodTextDocumentReferences, params)
}

// DocumentSymbol builds a textDocument/documentSymbol request.
func (b *Builder) DocumentSymbol(id int64, docURI uri.URI) (Request, []byte, error) {
	params := protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
	}
	return b.request(id, protocol.MethodTextDocumentDocumentSymbol, params)
}

// DidClose builds the textDocument/didClose notification.
func (b *Builder) DidClose(docURI uri.URI) (Request, []byte, error) {
	params := protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
	}
	return b.notification(protocol.MethodTextDocumentDidClose, params)
}

// Exit builds the exit notification. It is advisory: a server that ignores it
// is terminated by its stdin closing.
func (b *Builder) Exit() (Request, []byte, error) {
	return b.notification(protocol.MethodExit, nil)
}
