package buffer

import (
	"predictivecoder/logger"
	"predictivecoder/types"

	"github.com/neovim/go-client/nvim"
)

// Notifier shows messages with vim.notify.
type Notifier struct {
	client *nvim.Nvim
	title  string
}

func NewNotifier(client *nvim.Nvim, title string) *Notifier {
	return &Notifier{client: client, title: title}
}

func (n *Notifier) Notify(level types.NotifyLevel, message string) {
	if n.client == nil {
		return
	}
	err := n.client.ExecLua(
		`local msg, level, title = ...
vim.schedule(function() vim.notify(msg, level, { title = title }) end)`,
		nil, message, int(level), n.title)
	if err != nil {
		logger.Warn("notify failed: %v", err)
	}
}
