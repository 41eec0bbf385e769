package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pdflume/pdflume/pdf"
	"github.com/pdflume/pdflume/worker"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type viewerState int

const (
	statePageList viewerState = iota
	statePageText
	stateMetadata
	stateGotoPage
)

type viewerModel struct {
	err        error
	client     *worker.Client
	doc        *worker.Document
	engineFile string
	pdfFile    string
	password   string
	labels     []string
	pageText   string
	pageSize   string
	meta       []string
	gotoInput  textinput.Model
	selected   int
	state      viewerState
}

func newViewerModel(engineFile, pdfFile, password string) *viewerModel {
	ti := textinput.New()
	ti.Placeholder = "page number"
	ti.Prompt = "go to: "
	ti.Width = 20
	return &viewerModel{
		engineFile: engineFile,
		pdfFile:    pdfFile,
		password:   password,
		gotoInput:  ti,
		state:      statePageList,
	}
}

type loadedMsg struct {
	err    error
	client *worker.Client
	doc    *worker.Document
	labels []string
}

type pageTextMsg struct {
	err  error
	text string
	size string
}

type metadataMsg struct {
	err  error
	meta []string
}

func (m *viewerModel) Init() tea.Cmd {
	return m.loadDocument
}

func (m *viewerModel) loadDocument() tea.Msg {
	ctx := context.Background()

	binary, err := os.ReadFile(m.engineFile)
	if err != nil {
		return loadedMsg{err: err}
	}
	data, err := os.ReadFile(m.pdfFile)
	if err != nil {
		return loadedMsg{err: err}
	}

	client, err := worker.Start(ctx, worker.Config{Binary: binary})
	if err != nil {
		return loadedMsg{err: err}
	}

	doc, err := client.OpenDocument(ctx, data, m.password)
	if err != nil {
		client.Shutdown(ctx)
		return loadedMsg{err: err}
	}

	labels := make([]string, doc.PageCount())
	for i := range labels {
		label, err := doc.PageLabel(ctx, i)
		if err == nil && label != "" {
			labels[i] = label
		}
	}

	return loadedMsg{client: client, doc: doc, labels: labels}
}

func (m *viewerModel) loadPageText() tea.Msg {
	ctx := context.Background()

	page, err := m.doc.Page(ctx, m.selected)
	if err != nil {
		return pageTextMsg{err: err}
	}
	defer page.Dispose(ctx)

	text, err := page.Text(ctx)
	if err != nil {
		return pageTextMsg{err: err}
	}
	w, h, err := page.Size(ctx)
	if err != nil {
		return pageTextMsg{err: err}
	}
	return pageTextMsg{text: text, size: fmt.Sprintf("%.1f x %.1f pt", w, h)}
}

func (m *viewerModel) loadMetadata() tea.Msg {
	ctx := context.Background()

	var meta []string
	for _, tag := range []string{pdf.MetaTitle, pdf.MetaAuthor, pdf.MetaSubject, pdf.MetaKeywords, pdf.MetaCreator, pdf.MetaProducer} {
		value, err := m.doc.Metadata(ctx, tag)
		if err != nil {
			return metadataMsg{err: err}
		}
		if value != "" {
			meta = append(meta, fmt.Sprintf("%s: %s", tag, value))
		}
	}
	return metadataMsg{meta: meta}
}

func (m *viewerModel) shutdown() {
	ctx := context.Background()
	if m.doc != nil {
		m.doc.Dispose(ctx)
	}
	if m.client != nil {
		m.client.Shutdown(ctx)
	}
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateGotoPage {
			switch msg.String() {
			case "enter":
				if n, err := strconv.Atoi(m.gotoInput.Value()); err == nil && m.doc != nil && n >= 0 && n < m.doc.PageCount() {
					m.selected = n
				}
				m.state = statePageList
				m.gotoInput.Blur()
				m.gotoInput.Reset()
				return m, nil
			case "esc":
				m.state = statePageList
				m.gotoInput.Blur()
				m.gotoInput.Reset()
				return m, nil
			case "ctrl+c":
				m.shutdown()
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.gotoInput, cmd = m.gotoInput.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.shutdown()
			return m, tea.Quit

		case "up", "k":
			if m.state == statePageList && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == statePageList && m.doc != nil && m.selected < m.doc.PageCount()-1 {
				m.selected++
			}

		case "enter":
			if m.state == statePageList && m.doc != nil {
				return m, m.loadPageText
			}

		case "m":
			if m.state == statePageList && m.doc != nil {
				return m, m.loadMetadata
			}

		case "g":
			if m.state == statePageList && m.doc != nil {
				m.state = stateGotoPage
				m.gotoInput.Focus()
				return m, textinput.Blink
			}

		case "esc":
			if m.state == statePageText || m.state == stateMetadata {
				m.state = statePageList
				m.pageText = ""
				m.meta = nil
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.client = msg.client
		m.doc = msg.doc
		m.labels = msg.labels

	case pageTextMsg:
		m.err = msg.err
		m.pageText = msg.text
		m.pageSize = msg.size
		m.state = statePageText

	case metadataMsg:
		m.err = msg.err
		m.meta = msg.meta
		m.state = stateMetadata
	}

	return m, nil
}

func (m *viewerModel) View() string {
	if m.err != nil && m.state == statePageList {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.doc == nil {
		return "Loading document..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("PDF Viewer"))
	b.WriteString(" ")
	b.WriteString(m.pdfFile)
	b.WriteString("\n\n")

	switch m.state {
	case statePageList, stateGotoPage:
		b.WriteString(fmt.Sprintf("%d pages\n\n", m.doc.PageCount()))
		for i := 0; i < m.doc.PageCount(); i++ {
			line := fmt.Sprintf("Page %d", i)
			if i < len(m.labels) && m.labels[i] != "" {
				line += " " + labelStyle.Render("("+m.labels[i]+")")
			}
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateGotoPage {
			b.WriteString(m.gotoInput.View())
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render("enter jump • esc cancel"))
		} else {
			b.WriteString(helpStyle.Render("↑/↓ select • enter text • m metadata • g goto • q quit"))
		}

	case statePageText:
		b.WriteString(fmt.Sprintf("Page %d  %s\n\n", m.selected, labelStyle.Render(m.pageSize)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else if m.pageText == "" {
			b.WriteString(helpStyle.Render("(no text)"))
		} else {
			b.WriteString(textStyle.Render(m.pageText))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("esc back • q quit"))

	case stateMetadata:
		b.WriteString("Metadata\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else if len(m.meta) == 0 {
			b.WriteString(helpStyle.Render("(none)"))
		} else {
			for _, line := range m.meta {
				b.WriteString(textStyle.Render(line))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back • q quit"))
	}

	return b.String()
}
