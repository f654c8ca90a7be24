package transcript

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/logging"
	"github.com/grovetools/roster/pkg/models"
)

// line mirrors the fields of one transcript entry the parser cares about.
// Anything else on the line is ignored.
type line struct {
	Type            string   `json:"type"`
	Timestamp       string   `json:"timestamp,omitempty"`
	SessionID       string   `json:"sessionId,omitempty"`
	ParentSessionID string   `json:"parentSessionId,omitempty"`
	Cwd             string   `json:"cwd,omitempty"`
	IsSidechain     bool     `json:"isSidechain,omitempty"`
	Message         *message `json:"message,omitempty"`
}

type message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
	Usage   *usage          `json:"usage,omitempty"`
}

// block is one element of an assistant message's content array.
type block struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type todoInput struct {
	Todos []struct {
		Content string `json:"content"`
		Status  string `json:"status"`
	} `json:"todos"`
}

// lastKind classifies the last meaningful entry seen so far.
type lastKind int

const (
	kindNone lastKind = iota
	kindUser
	kindAssistantTool
	kindAssistantText
	kindDone
)

// Parser turns transcript files into SessionState snapshots. Parsing never
// mutates anything outside the returned value.
type Parser struct {
	log *logrus.Entry
}

// NewParser creates a transcript parser.
func NewParser() *Parser {
	return &Parser{log: logging.NewLogger("transcript")}
}

// Parse reads the transcript at path and derives its session state. A file
// that exists but contains no parsable entries yields (nil, nil): the caller
// keeps the session pending and retries on the next change.
func (p *Parser) Parse(path string) (*SessionState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fileID, isAgent, _ := SessionIDFromPath(path)

	state := &SessionState{
		SessionID: fileID,
		IsAgent:   isAgent,
	}

	var (
		last         lastKind
		contentID    string
		sawSidechain bool
		parsed       int
		malformed    int
	)

	scanner := bufio.NewScanner(f)
	// Tool results can embed whole files, so lines get large.
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var entry line
		if err := json.Unmarshal(raw, &entry); err != nil {
			malformed++
			continue
		}
		parsed++

		if entry.SessionID != "" {
			contentID = entry.SessionID
		}
		if entry.ParentSessionID != "" {
			state.ParentSessionID = entry.ParentSessionID
		}
		if entry.Cwd != "" {
			state.Cwd = entry.Cwd
		}
		if entry.IsSidechain {
			sawSidechain = true
		}

		if ts, ok := parseTimestamp(entry.Timestamp); ok {
			if state.Created.IsZero() {
				state.Created = ts
			}
			state.LastModified = ts
		}

		switch entry.Type {
		case "user":
			if entry.Message != nil {
				last = kindUser
			}
		case "assistant":
			p.applyAssistant(state, &entry, &last)
		case "summary", "result":
			last = kindDone
		}
	}

	if err := scanner.Err(); err != nil {
		p.log.WithField("path", path).WithError(err).Debug("Transcript read aborted")
		return nil, err
	}

	if parsed == 0 {
		return nil, nil
	}
	if malformed > 0 {
		p.log.WithFields(logrus.Fields{"path": path, "skipped": malformed}).Debug("Skipped malformed transcript lines")
	}

	p.resolveIdentity(state, contentID, sawSidechain)
	state.Status = deriveStatus(last, state.Tasks)

	if state.LastModified.IsZero() {
		if info, err := os.Stat(path); err == nil {
			state.LastModified = info.ModTime()
			if state.Created.IsZero() {
				state.Created = info.ModTime()
			}
		}
	}

	return state, nil
}

// applyAssistant folds one assistant entry into the running state: token
// usage, the latest todo list, and the meaningful-entry classification.
func (p *Parser) applyAssistant(state *SessionState, entry *line, last *lastKind) {
	if entry.Message == nil {
		return
	}

	if u := entry.Message.Usage; u != nil {
		state.Usage.InputTokens += u.InputTokens
		state.Usage.OutputTokens += u.OutputTokens
		state.Usage.CacheReadTokens += u.CacheReadInputTokens
		state.Usage.CacheCreationTokens += u.CacheCreationInputTokens
	}

	var blocks []block
	if err := json.Unmarshal(entry.Message.Content, &blocks); err != nil {
		// Some entries carry content as a bare string.
		var text string
		if json.Unmarshal(entry.Message.Content, &text) == nil && text != "" {
			*last = kindAssistantText
		}
		return
	}

	kind := kindNone
	for _, b := range blocks {
		switch b.Type {
		case "tool_use":
			kind = kindAssistantTool
			if b.Name == "TodoWrite" {
				var in todoInput
				if err := json.Unmarshal(b.Input, &in); err == nil && len(in.Todos) > 0 {
					tasks := make([]models.Task, 0, len(in.Todos))
					for _, todo := range in.Todos {
						tasks = append(tasks, models.Task{
							Content: todo.Content,
							Status:  models.TaskStatus(todo.Status),
						})
					}
					state.Tasks = tasks
				}
			}
		case "text":
			if kind == kindNone && b.Text != "" {
				kind = kindAssistantText
			}
		}
	}

	if kind != kindNone {
		*last = kind
	}
}

// resolveIdentity settles the session's own id and its parent. Agent files
// name their own id in the file name while their entries carry the parent's
// id; primary files name their id in both places.
func (p *Parser) resolveIdentity(state *SessionState, contentID string, sawSidechain bool) {
	if state.SessionID == "" {
		state.SessionID = contentID
	}

	if state.ParentSessionID != "" {
		return
	}
	if (state.IsAgent || sawSidechain) && contentID != "" && contentID != state.SessionID {
		state.ParentSessionID = contentID
	}
}

// deriveStatus applies the content status rules. Activity wins over
// completion: a session still driving tools is working even if every task on
// its list is checked off.
func deriveStatus(last lastKind, tasks []models.Task) models.SessionStatus {
	if last == kindUser || last == kindAssistantTool {
		return models.StatusWorking
	}
	if last == kindDone {
		return models.StatusDone
	}
	if len(tasks) > 0 && allCompleted(tasks) {
		return models.StatusDone
	}
	return models.StatusPaused
}

func allCompleted(tasks []models.Task) bool {
	for _, t := range tasks {
		if t.Status != models.TaskCompleted {
			return false
		}
	}
	return true
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
