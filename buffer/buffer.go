package buffer

import (
	"fmt"
	"strings"
	"sync"

	"predictivecoder/logger"
	"predictivecoder/text"
	"predictivecoder/types"

	"github.com/neovim/go-client/nvim"
)

// GhostHighlight is the highlight group used for suggestion text.
const GhostHighlight = "PredictiveCoderSuggestion"

type Config struct {
	NsID int
}

// NvimBuffer is the editor view of one Neovim buffer. It keeps the snapshot
// read by the last Sync; writes made through InsertText and Reformat update
// the snapshot as well, so they never show up as user edits.
type NvimBuffer struct {
	client *nvim.Nvim
	id     nvim.Buffer
	config Config

	mu       sync.Mutex
	lines    []string
	row      int // 0-indexed
	col      int // byte column
	fileType string
	synced   bool
}

func New(client *nvim.Nvim, id nvim.Buffer, config Config) *NvimBuffer {
	return &NvimBuffer{
		client: client,
		id:     id,
		config: config,
		lines:  []string{""},
	}
}

// Sync reads the buffer lines, the caret of the current window when it shows
// this buffer, and the filetype in a single round-trip.
func (b *NvimBuffer) Sync() (*types.SyncResult, error) {
	defer logger.Trace("buffer.Sync")()
	if b.client == nil {
		return nil, fmt.Errorf("nvim client not set")
	}

	batch := b.client.NewBatch()

	var lines [][]byte
	var winBuf nvim.Buffer
	var cursor [2]int
	var fileType string

	batch.BufferLines(b.id, 0, -1, false, &lines)
	batch.WindowBuffer(nvim.Window(0), &winBuf)
	batch.WindowCursor(nvim.Window(0), &cursor)
	batch.ExecLua(`local buf = ...; return vim.bo[buf].filetype`, &fileType, int(b.id))

	if err := batch.Execute(); err != nil {
		logger.Error("error executing sync batch: %v", err)
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.fileType = fileType
	return b.apply(bytesToLines(lines), cursor, winBuf == b.id), nil
}

// apply replaces the snapshot and reports the difference. cursor is the
// (1-indexed row, byte col) pair nvim reports; it is ignored unless the
// current window shows this buffer.
func (b *NvimBuffer) apply(lines []string, cursor [2]int, visible bool) *types.SyncResult {
	if len(lines) == 0 {
		lines = []string{""}
	}

	res := &types.SyncResult{}
	if b.synced {
		if change, ok := text.ClassifyChange(b.lines, lines); ok {
			res.TextChanged = true
			res.ChangedLine = change.Line
			res.LineBoundary = change.LineBoundary
		}
	}

	row, col := b.row, b.col
	if visible {
		row, col = cursor[0]-1, cursor[1]
	}
	if row >= len(lines) {
		row = len(lines) - 1
	}
	row = max(row, 0)
	res.CaretMoved = b.synced && (row != b.row || col != b.col)
	res.CaretLine, res.CaretCol = row, col

	b.lines = lines
	b.row, b.col = row, col
	b.synced = true
	return res
}

func (b *NvimBuffer) Document() *text.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return text.NewDocument(b.lines)
}

func (b *NvimBuffer) CaretOffset() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return text.NewDocument(b.lines).Offset(b.row, b.col)
}

func (b *NvimBuffer) FileType() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fileType
}

// InsertText writes s at offset, replacing only the line it lands on, and
// moves the caret after the inserted text.
func (b *NvimBuffer) InsertText(offset int, s string) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	edit := spliceInsert(b.lines, offset, s)

	batch := b.client.NewBatch()
	batch.ClearBufferNamespace(b.id, b.config.NsID, 0, -1)
	batch.SetBufferLines(b.id, edit.line, edit.line+1, false, linesToBytes(edit.replacement))
	batch.SetWindowCursor(nvim.Window(0), [2]int{edit.row + 1, edit.col})
	if err := batch.Execute(); err != nil {
		return err
	}

	b.lines = edit.lines
	b.row, b.col = edit.row, edit.col
	return nil
}

// Reformat re-indents the lines spanned by [start, end) and keeps the caret
// at the same distance from the end of its line.
func (b *NvimBuffer) Reformat(start, end int) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	doc := text.NewDocument(b.lines)
	first := doc.LineOfOffset(start) + 1
	last := doc.LineOfOffset(end) + 1

	var lines [][]byte
	var cursor [2]int
	batch := b.client.NewBatch()
	batch.ExecLua(reindentLua, nil, int(b.id), first, last)
	batch.BufferLines(b.id, 0, -1, false, &lines)
	batch.WindowCursor(nvim.Window(0), &cursor)
	if err := batch.Execute(); err != nil {
		return err
	}

	b.lines = bytesToLines(lines)
	if len(b.lines) == 0 {
		b.lines = []string{""}
	}
	b.row, b.col = max(cursor[0]-1, 0), cursor[1]
	return nil
}

const reindentLua = `
local buf, first, last = ...
vim.api.nvim_buf_call(buf, function()
  local row, col = unpack(vim.api.nvim_win_get_cursor(0))
  local tail = #vim.api.nvim_get_current_line() - col
  vim.cmd(("silent! keepjumps %d,%dnormal! =="):format(first, last))
  local line = vim.api.nvim_buf_get_lines(buf, row - 1, row, false)[1] or ""
  vim.api.nvim_win_set_cursor(0, { row, math.max(#line - tail, 0) })
end)
`

// ShowGhostText renders s at offset as an extmark: the first line inline at
// the caret, the rest as virtual lines below it.
func (b *NvimBuffer) ShowGhostText(offset int, s string) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	b.mu.Lock()
	row, col := text.NewDocument(b.lines).Position(offset)
	b.mu.Unlock()

	inline, below := ghostMarks(s)
	logger.Debug("showing ghost text at %d:%d (%d extra lines)", row+1, col, len(below))

	batch := b.client.NewBatch()
	batch.ClearBufferNamespace(b.id, b.config.NsID, 0, -1)
	batch.ExecLua(showGhostLua, nil, int(b.id), b.config.NsID, row, col, inline, below, GhostHighlight)
	return batch.Execute()
}

const showGhostLua = `
local buf, ns, row, col, inline, below, hl = ...
local opts = { hl_mode = "combine" }
if inline ~= "" then
  opts.virt_text = { { inline, hl } }
  opts.virt_text_pos = "inline"
end
if #below > 0 then
  local virt_lines = {}
  for _, l in ipairs(below) do
    table.insert(virt_lines, { { l, hl } })
  end
  opts.virt_lines = virt_lines
end
vim.api.nvim_buf_set_extmark(buf, ns, row, col, opts)
`

func (b *NvimBuffer) ClearGhostText() error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	batch := b.client.NewBatch()
	batch.ClearBufferNamespace(b.id, b.config.NsID, 0, -1)
	return batch.Execute()
}

// ghostMarks splits a suggestion into the part shown on the caret line and
// the lines shown below it.
func ghostMarks(s string) (inline string, below []string) {
	parts := strings.Split(s, "\n")
	below = []string{}
	for _, p := range parts[1:] {
		below = append(below, strings.TrimRight(p, "\r"))
	}
	return strings.TrimRight(parts[0], "\r"), below
}

type insertEdit struct {
	line        int      // buffer line replaced
	replacement []string // lines written in its place
	lines       []string // full buffer after the edit
	row, col    int      // caret after the edit
}

func spliceInsert(lines []string, offset int, s string) insertEdit {
	doc := text.NewDocument(lines)
	line, _ := doc.Position(offset)
	end := doc.Offset(line, len(doc.Line(line))) + len(s)

	next := doc.Insert(offset, s)
	lastLine, _ := next.Position(end)
	row, col := next.Position(offset + len(s))

	all := next.Lines()
	return insertEdit{
		line:        line,
		replacement: append([]string(nil), all[line:lastLine+1]...),
		lines:       all,
		row:         row,
		col:         col,
	}
}

func bytesToLines(raw [][]byte) []string {
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(l)
	}
	return lines
}

func linesToBytes(lines []string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}
