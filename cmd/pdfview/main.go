package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	var (
		engineFile = flag.String("engine", "", "Path to engine wasm file")
		pdfFile    = flag.String("pdf", "", "Path to PDF file")
		password   = flag.String("password", "", "Document password")
	)
	flag.Parse()

	if *engineFile == "" || *pdfFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: pdfview -engine <engine.wasm> -pdf <file.pdf> [-password pw]")
		os.Exit(1)
	}

	p := tea.NewProgram(newViewerModel(*engineFile, *pdfFile, *password), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
