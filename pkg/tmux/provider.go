package tmux

import (
	"context"

	"github.com/grovetools/roster/errors"
	"github.com/grovetools/roster/pkg/terminal"
)

// Provider exposes tmux panes as terminals.
type Provider struct {
	client *Client
}

// NewProvider wraps a tmux client as a terminal provider.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// Name identifies the provider.
func (p *Provider) Name() string { return "tmux" }

// Terminals lists every pane on the server.
func (p *Provider) Terminals(ctx context.Context) ([]terminal.Terminal, error) {
	panes, err := p.client.ListPanes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTerminalProvider, "failed to list tmux panes")
	}

	terms := make([]terminal.Terminal, 0, len(panes))
	for _, pane := range panes {
		terms = append(terms, &paneTerminal{client: p.client, id: pane.ID})
	}
	return terms, nil
}

// Find returns the pane with the given id.
func (p *Provider) Find(ctx context.Context, id string) (terminal.Terminal, error) {
	pane, err := p.client.FindPane(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTerminalGone, "tmux pane not found").
			WithDetail("terminalId", id)
	}
	return &paneTerminal{client: p.client, id: pane.ID}, nil
}

// paneTerminal adapts one pane to the terminal interface. Queries always go
// to the live server: panes swap shells and titles while a handle is held,
// and a pane that stopped answering must read as gone, not as its last
// known state.
type paneTerminal struct {
	client *Client
	id     string
}

func (t *paneTerminal) ID() string { return t.id }

func (t *paneTerminal) PID(ctx context.Context) (int, error) {
	return t.client.PanePID(ctx, t.id)
}

func (t *paneTerminal) Title(ctx context.Context) (string, error) {
	return t.client.PaneTitle(ctx, t.id)
}

func (t *paneTerminal) Reveal(ctx context.Context) error {
	return t.client.RevealPane(ctx, t.id)
}
