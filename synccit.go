// Package synccit defines the request/response types for the synccit HTTP API.
// All bodies are JSON-encoded.
package synccit

import "encoding/json"

// ActionRequest is posted to the AI action endpoint.
type ActionRequest struct {
	// Code is the full text of the file under inspection.
	Code string `json:"code"`
	// Language is the declared source language, used only for prompt phrasing.
	Language string `json:"language"`
	// SelectedText, when non-blank, replaces Code as the analysis target.
	SelectedText string `json:"selected_text,omitempty"`
	// UserInput carries simulation input or redesign requirements.
	UserInput string `json:"user_input,omitempty"`
}

// Metrics holds the scores extracted from a reduce-complexity reply.
type Metrics struct {
	Efficiency  int `json:"efficiency"`
	Scalability int `json:"scalability"`
}

// ActionResponse is returned by the AI action endpoint.
type ActionResponse struct {
	// Result is the trimmed model reply.
	Result string `json:"result"`
	// Metrics is only set for the reduce-complexity action.
	Metrics *Metrics `json:"metrics"`
	// TestResults is reserved for executed test cases; always null today.
	TestResults json.RawMessage `json:"test_results"`
}

// ErrorResponse is the body of a failed AI action request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// APIError is the body of a failed workspace or agent request.
type APIError struct {
	Error string `json:"error"`
}

// CommandRequest is posted to the terminal endpoint.
type CommandRequest struct {
	Command string `json:"command"`
	// Cwd is the working directory returned by the previous call.
	Cwd string `json:"cwd"`
}

// CommandResponse is returned by the terminal endpoint.
// The server keeps no state between calls; callers resend NewCwd as Cwd.
type CommandResponse struct {
	Output string `json:"output"`
	Error  string `json:"error"`
	NewCwd string `json:"newCwd"`
}

// TranslateRequest asks the agent to turn intent into a shell command.
type TranslateRequest struct {
	Prompt string `json:"prompt"`
}

// Translation is the agent's suggested command.
type Translation struct {
	Cmd  string `json:"cmd,omitempty"`
	Desc string `json:"desc,omitempty"`
	// Safe is "YES" or "NO".
	Safe string `json:"safe,omitempty"`
}

// File tree node types.
const (
	NodeFile   = "file"
	NodeFolder = "folder"
)

// FileNode is one entry of the workspace file tree.
type FileNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
	// Children is always present for folders, possibly empty, and absent for files.
	Children []*FileNode `json:"children,omitempty"`
}

// MarshalJSON emits "children": [] for empty folders.
func (n *FileNode) MarshalJSON() ([]byte, error) {
	type plain FileNode
	if n.Type != NodeFolder {
		return json.Marshal((*plain)(n))
	}
	children := n.Children
	if children == nil {
		children = []*FileNode{}
	}
	return json.Marshal(struct {
		*plain
		Children []*FileNode `json:"children"`
	}{(*plain)(n), children})
}

// FileContent is returned when reading a single file.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SaveFileRequest writes a single file.
type SaveFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SuccessResponse acknowledges a write or upload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
}

// FSChange is a single filesystem change inside a refresh event.
type FSChange struct {
	Op   string `json:"op"`
	Path string `json:"path"`
}

// FSEvent is pushed over the filesystem websocket.
type FSEvent struct {
	// Type is always "refresh".
	Type    string     `json:"type"`
	Changes []FSChange `json:"changes"`
}

// TerminalFrame is a client control message on the terminal websocket.
type TerminalFrame struct {
	// Type is "input" or "resize".
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Rows int    `json:"rows,omitempty"`
	Cols int    `json:"cols,omitempty"`
}

// ProjectSummary describes the project a directory belongs to.
type ProjectSummary struct {
	Path           string            `json:"path"`
	Listing        []string          `json:"listing"`
	Manifests      map[string]string `json:"manifests"`
	PackageManager string            `json:"package_manager,omitempty"`
	GitRoot        string            `json:"git_root,omitempty"`
	GitRootListing []string          `json:"git_root_listing,omitempty"`
	GitManifests   map[string]string `json:"git_manifests,omitempty"`
	Staged         []string          `json:"staged,omitempty"`
}

// Health is returned by the health endpoint.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
