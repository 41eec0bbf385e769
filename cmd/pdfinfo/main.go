package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"os"

	"go.uber.org/zap"

	"github.com/pdflume/pdflume/engine"
	"github.com/pdflume/pdflume/pdf"
	"github.com/pdflume/pdflume/worker"
)

func main() {
	var (
		engineFile = flag.String("engine", "", "Path to engine wasm file")
		pdfFile    = flag.String("pdf", "", "Path to PDF file")
		password   = flag.String("password", "", "Document password")
		pageIndex  = flag.Int("page", 0, "Page index (zero-based)")
		showText   = flag.Bool("text", false, "Print page text")
		showLayout = flag.Bool("layout", false, "Print per-character boxes")
		showMeta   = flag.Bool("meta", false, "Print document metadata")
		showLabels = flag.Bool("labels", false, "Print page labels")
		renderOut  = flag.String("render", "", "Render the page to a PNG file")
		scale      = flag.Float64("scale", 1.0, "Render scale")
		useWorker  = flag.Bool("worker", false, "Run the engine in a background worker")
		verbose    = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *engineFile == "" || *pdfFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: pdfinfo -engine <engine.wasm> -pdf <file.pdf> [-page n] [-text] [-meta] [-render out.png]")
		os.Exit(1)
	}

	var log *zap.Logger
	if *verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
	}

	opts := pdf.RenderOptions{Scale: *scale}
	if err := run(*engineFile, *pdfFile, *password, *pageIndex, *showText, *showLayout, *showMeta, *showLabels, *renderOut, opts, *useWorker, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(engineFile, pdfFile, password string, pageIndex int, showText, showLayout, showMeta, showLabels bool, renderOut string, opts pdf.RenderOptions, useWorker bool, log *zap.Logger) error {
	ctx := context.Background()

	binary, err := os.ReadFile(engineFile)
	if err != nil {
		return fmt.Errorf("read engine: %w", err)
	}
	data, err := os.ReadFile(pdfFile)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}

	if useWorker {
		return runWorker(ctx, binary, data, password, pageIndex, showText, showLayout, showMeta, showLabels, renderOut, opts, log)
	}
	return runDirect(ctx, binary, data, password, pageIndex, showText, showLayout, showMeta, showLabels, renderOut, opts)
}

func runDirect(ctx context.Context, binary, data []byte, password string, pageIndex int, showText, showLayout, showMeta, showLabels bool, renderOut string, opts pdf.RenderOptions) error {
	lib, err := pdf.Open(ctx, engine.Config{Binary: binary})
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer lib.Dispose()

	doc, err := lib.OpenDocument(ctx, data, password)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}

	pages, err := doc.PageCount(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Pages: %d\n", pages)

	if showMeta {
		for _, tag := range []string{pdf.MetaTitle, pdf.MetaAuthor, pdf.MetaSubject, pdf.MetaKeywords, pdf.MetaCreator, pdf.MetaProducer} {
			value, err := doc.Metadata(ctx, tag)
			if err != nil {
				return err
			}
			if value != "" {
				fmt.Printf("%s: %s\n", tag, value)
			}
		}
	}

	if showLabels {
		for i := 0; i < pages; i++ {
			label, err := doc.PageLabel(ctx, i)
			if err != nil {
				return err
			}
			if label != "" {
				fmt.Printf("Page %d label: %s\n", i, label)
			}
		}
	}

	if !showText && !showLayout && renderOut == "" {
		return nil
	}

	page, err := doc.Page(ctx, pageIndex)
	if err != nil {
		return fmt.Errorf("load page %d: %w", pageIndex, err)
	}

	w, h, err := page.Size(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Page %d: %.1f x %.1f pt\n", pageIndex, w, h)

	if showText {
		text, err := page.Text(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", text)
	}

	if showLayout {
		boxes, err := page.TextLayout(ctx)
		if err != nil {
			return err
		}
		for i, b := range boxes {
			fmt.Printf("char %4d: [%.2f %.2f %.2f %.2f] %.1fpt\n", i, b.Left, b.Bottom, b.Right, b.Top, b.FontSize)
		}
	}

	if renderOut != "" {
		bmp, err := page.Render(ctx, opts)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		defer bmp.Dispose()
		if err := writePNG(renderOut, bmp); err != nil {
			return err
		}
		fmt.Printf("Rendered %dx%d to %s\n", bmp.Width(), bmp.Height(), renderOut)
	}

	return nil
}

func runWorker(ctx context.Context, binary, data []byte, password string, pageIndex int, showText, showLayout, showMeta, showLabels bool, renderOut string, opts pdf.RenderOptions, log *zap.Logger) error {
	client, err := worker.Start(ctx, worker.Config{Binary: binary, Logger: log})
	if err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer client.Shutdown(ctx)

	doc, err := client.OpenDocument(ctx, data, password)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	fmt.Printf("Pages: %d\n", doc.PageCount())

	if showMeta {
		for _, tag := range []string{pdf.MetaTitle, pdf.MetaAuthor, pdf.MetaSubject, pdf.MetaKeywords, pdf.MetaCreator, pdf.MetaProducer} {
			value, err := doc.Metadata(ctx, tag)
			if err != nil {
				return err
			}
			if value != "" {
				fmt.Printf("%s: %s\n", tag, value)
			}
		}
	}

	if showLabels {
		for i := 0; i < doc.PageCount(); i++ {
			label, err := doc.PageLabel(ctx, i)
			if err != nil {
				return err
			}
			if label != "" {
				fmt.Printf("Page %d label: %s\n", i, label)
			}
		}
	}

	if !showText && !showLayout && renderOut == "" {
		return nil
	}

	page, err := doc.Page(ctx, pageIndex)
	if err != nil {
		return fmt.Errorf("load page %d: %w", pageIndex, err)
	}

	w, h, err := page.Size(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Page %d: %.1f x %.1f pt\n", pageIndex, w, h)

	if showText {
		text, err := page.Text(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", text)
	}

	if showLayout {
		boxes, err := page.TextLayout(ctx)
		if err != nil {
			return err
		}
		for i, b := range boxes {
			fmt.Printf("char %4d: [%.2f %.2f %.2f %.2f] %.1fpt\n", i, b.Left, b.Bottom, b.Right, b.Top, b.FontSize)
		}
	}

	if renderOut != "" {
		bmp, err := page.Render(ctx, opts)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		defer bmp.Dispose()
		if err := writePNG(renderOut, bmp); err != nil {
			return err
		}
		fmt.Printf("Rendered %dx%d to %s\n", bmp.Width(), bmp.Height(), renderOut)
	}

	return nil
}

func writePNG(path string, bmp *pdf.Bitmap) error {
	img, err := bmp.Image()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
