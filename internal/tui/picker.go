package tui

import (
	"fmt"
	"strings"
)

type pickerItem struct {
	id     string
	title  string
	detail string
	active bool
}

// picker is the list overlay used for saved conversations and API configs
type picker struct {
	title  string
	items  []pickerItem
	cursor int
}

// maxVisible is how many rows a picker shows at once
const maxVisible = 10

func (p *picker) move(delta int) {
	if len(p.items) == 0 {
		p.cursor = 0
		return
	}
	p.cursor = (p.cursor + delta + len(p.items)) % len(p.items)
}

func (p *picker) setItems(items []pickerItem) {
	p.items = items
	if p.cursor >= len(items) {
		p.cursor = max(len(items)-1, 0)
	}
}

func (p picker) selected() (pickerItem, bool) {
	if p.cursor < 0 || p.cursor >= len(p.items) {
		return pickerItem{}, false
	}
	return p.items[p.cursor], true
}

func (p picker) view(width int) string {
	var sb strings.Builder
	sb.WriteString(pickerTitleStyle.Render(p.title))
	sb.WriteString("\n\n")

	if len(p.items) == 0 {
		sb.WriteString(hintStyle.Render("  Nothing here yet"))
		sb.WriteString("\n")
	}

	start := 0
	if p.cursor >= maxVisible {
		start = p.cursor - maxVisible + 1
	}
	end := min(start+maxVisible, len(p.items))
	if start > 0 {
		sb.WriteString(hintStyle.Render("  ↑ more above"))
		sb.WriteString("\n")
	}
	for i := start; i < end; i++ {
		it := p.items[i]
		cursor := "  "
		style := pickerItemStyle
		if i == p.cursor {
			cursor = pickerCursorStyle.Render("▸ ")
			style = pickerSelectedStyle
		}
		line := cursor + style.Render(it.title)
		if it.active {
			line += activeMarkStyle.Render(" ●")
		}
		if it.detail != "" {
			line += hintStyle.Render("  " + it.detail)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if end < len(p.items) {
		sb.WriteString(hintStyle.Render(fmt.Sprintf("  ↓ %d more", len(p.items)-end)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(shortcuts([][2]string{
		{"↑↓", "Navigate"},
		{"Enter", "Open"},
		{"d", "Delete"},
		{"Esc", "Back"},
	}))

	return pickerBoxStyle.Width(max(width-8, 40)).Render(sb.String())
}

func shortcuts(keys [][2]string) string {
	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, statusKeyStyle.Render(k[0])+statusDescStyle.Render(" "+k[1]))
	}
	return strings.Join(items, "  │  ")
}
