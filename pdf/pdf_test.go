package pdf_test

import (
	"context"
	"testing"

	"github.com/pdflume/pdflume/engine/enginetest"
	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/pdf"
)

func newTestLibrary(t *testing.T) (*pdf.Library, *enginetest.Fake) {
	t.Helper()
	fake := enginetest.New(1 << 20)
	lib, err := pdf.NewLibrary(context.Background(), fake, fake.Arena())
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	return lib, fake
}

func TestOpenDocumentPageCount(t *testing.T) {
	lib, fake := newTestLibrary(t)
	defer lib.Dispose()
	ctx := context.Background()

	doc, err := lib.OpenDocument(ctx, enginetest.SimpleDocument(3, 612, 792), "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}

	n, err := doc.PageCount(ctx)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("PageCount = %d, want 3", n)
	}
	if fake.CallCount("LoadMemDocument") != 1 {
		t.Fatalf("LoadMemDocument called %d times, want 1", fake.CallCount("LoadMemDocument"))
	}
}

func TestOpenDocumentEmptyData(t *testing.T) {
	lib, _ := newTestLibrary(t)
	defer lib.Dispose()

	_, err := lib.OpenDocument(context.Background(), nil, "")
	if !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("error = %v, want invalid_input", err)
	}
}

func TestOpenDocumentBadFormat(t *testing.T) {
	lib, fake := newTestLibrary(t)
	defer lib.Dispose()

	_, err := lib.OpenDocument(context.Background(), []byte("not a document"), "")
	if !errors.IsKind(err, errors.KindHandleInvalid) {
		t.Fatalf("error = %v, want handle_invalid", err)
	}
	// Failed open must not leak the document data copy.
	if got := fake.Arena().ActiveAllocations(); got != 0 {
		t.Fatalf("ActiveAllocations = %d after failed open, want 0", got)
	}
}

func TestOpenDocumentPassword(t *testing.T) {
	lib, _ := newTestLibrary(t)
	defer lib.Dispose()
	ctx := context.Background()

	data := enginetest.DocumentBytes(enginetest.DocumentSpec{
		Password: "secret",
		Pages:    []enginetest.PageSpec{{Width: 100, Height: 100}},
	})

	if _, err := lib.OpenDocument(ctx, data, "wrong"); !errors.IsKind(err, errors.KindHandleInvalid) {
		t.Fatalf("wrong password: error = %v, want handle_invalid", err)
	}

	doc, err := lib.OpenDocument(ctx, data, "secret")
	if err != nil {
		t.Fatalf("correct password: %v", err)
	}
	if err := doc.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
}

func TestPageSizeAndText(t *testing.T) {
	lib, _ := newTestLibrary(t)
	defer lib.Dispose()
	ctx := context.Background()

	doc, err := lib.OpenDocument(ctx, enginetest.SimpleDocument(2, 612, 792), "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}

	page, err := doc.Page(ctx, 1)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}

	w, h, err := page.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if w != 612 || h != 792 {
		t.Fatalf("Size = %gx%g, want 612x792", w, h)
	}

	text, err := page.Text(ctx)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "page 1" {
		t.Fatalf("Text = %q, want %q", text, "page 1")
	}
}

func TestPageLoadErrors(t *testing.T) {
	lib, _ := newTestLibrary(t)
	defer lib.Dispose()
	ctx := context.Background()

	doc, err := lib.OpenDocument(ctx, enginetest.SimpleDocument(1, 100, 100), "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}

	if _, err := doc.Page(ctx, -1); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("negative index: error = %v, want invalid_input", err)
	}
	if _, err := doc.Page(ctx, 5); !errors.IsKind(err, errors.KindHandleInvalid) {
		t.Fatalf("out of range: error = %v, want handle_invalid", err)
	}
}

func TestTextLayout(t *testing.T) {
	lib, _ := newTestLibrary(t)
	defer lib.Dispose()
	ctx := context.Background()

	data := enginetest.DocumentBytes(enginetest.DocumentSpec{
		Pages: []enginetest.PageSpec{{Width: 100, Height: 100, Text: "abc"}},
	})
	doc, err := lib.OpenDocument(ctx, data, "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	page, err := doc.Page(ctx, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}

	boxes, err := page.TextLayout(ctx)
	if err != nil {
		t.Fatalf("TextLayout: %v", err)
	}
	if len(boxes) != 3 {
		t.Fatalf("len(boxes) = %d, want 3", len(boxes))
	}
	for i, box := range boxes {
		wantLeft := float64(i) * 6
		if box.Left != wantLeft || box.Right != wantLeft+5 {
			t.Errorf("box %d = [%g, %g], want [%g, %g]", i, box.Left, box.Right, wantLeft, wantLeft+5)
		}
		if box.Bottom != 0 || box.Top != 10 {
			t.Errorf("box %d vertical = [%g, %g], want [0, 10]", i, box.Bottom, box.Top)
		}
		if box.FontSize != 12 {
			t.Errorf("box %d font size = %g, want 12", i, box.FontSize)
		}
	}
}

func TestMetadataAndLabels(t *testing.T) {
	lib, _ := newTestLibrary(t)
	defer lib.Dispose()
	ctx := context.Background()

	data := enginetest.DocumentBytes(enginetest.DocumentSpec{
		Meta:   map[string]string{"Title": "Annual Report", "Author": "J. Doe"},
		Labels: []string{"i", "ii", "1"},
		Pages: []enginetest.PageSpec{
			{Width: 100, Height: 100},
			{Width: 100, Height: 100},
			{Width: 100, Height: 100},
		},
	})
	doc, err := lib.OpenDocument(ctx, data, "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}

	title, err := doc.Metadata(ctx, pdf.MetaTitle)
	if err != nil {
		t.Fatalf("Metadata(Title): %v", err)
	}
	if title != "Annual Report" {
		t.Fatalf("Title = %q, want %q", title, "Annual Report")
	}

	subject, err := doc.Metadata(ctx, pdf.MetaSubject)
	if err != nil {
		t.Fatalf("Metadata(Subject): %v", err)
	}
	if subject != "" {
		t.Fatalf("missing tag = %q, want empty", subject)
	}

	label, err := doc.PageLabel(ctx, 1)
	if err != nil {
		t.Fatalf("PageLabel: %v", err)
	}
	if label != "ii" {
		t.Fatalf("PageLabel(1) = %q, want %q", label, "ii")
	}

	label, err = doc.PageLabel(ctx, 10)
	if err != nil {
		t.Fatalf("PageLabel out of range: %v", err)
	}
	if label != "" {
		t.Fatalf("PageLabel(10) = %q, want empty", label)
	}
}

func TestRenderPage(t *testing.T) {
	lib, fake := newTestLibrary(t)
	defer lib.Dispose()
	ctx := context.Background()

	doc, err := lib.OpenDocument(ctx, enginetest.SimpleDocument(4, 200, 100), "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	page, err := doc.Page(ctx, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}

	bmp, err := page.Render(ctx, pdf.RenderOptions{Scale: 2})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	defer bmp.Dispose()

	if bmp.Width() != 400 || bmp.Height() != 200 {
		t.Fatalf("bitmap = %dx%d, want 400x200", bmp.Width(), bmp.Height())
	}
	pixels, err := bmp.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if len(pixels) != 400*200*4 {
		t.Fatalf("len(pixels) = %d, want %d", len(pixels), 400*200*4)
	}

	// The fake renders page 0 as BGRA {0x10, 0x20, 0x30, 0xff}; after the
	// host-side channel swap the first pixel must read RGBA.
	if pixels[0] != 0x30 || pixels[1] != 0x20 || pixels[2] != 0x10 || pixels[3] != 0xff {
		t.Fatalf("first pixel = %v, want RGBA [30 20 10 ff]", pixels[:4])
	}

	// The transient bitmap handle and render buffer must not outlive the
	// call: only the document data copy stays allocated.
	if fake.CallCount("DestroyBitmap") != 1 {
		t.Fatalf("DestroyBitmap called %d times, want 1", fake.CallCount("DestroyBitmap"))
	}
	if got := fake.Arena().ActiveAllocations(); got != 1 {
		t.Fatalf("ActiveAllocations = %d after render, want 1", got)
	}
}

func TestRenderExplicitSize(t *testing.T) {
	lib, _ := newTestLibrary(t)
	defer lib.Dispose()
	ctx := context.Background()

	doc, err := lib.OpenDocument(ctx, enginetest.SimpleDocument(1, 200, 100), "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	page, err := doc.Page(ctx, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}

	bmp, err := page.Render(ctx, pdf.RenderOptions{Width: 64, Height: 32})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	defer bmp.Dispose()

	if bmp.Width() != 64 || bmp.Height() != 32 || bmp.Stride() != 64*4 {
		t.Fatalf("bitmap = %dx%d stride %d, want 64x32 stride 256", bmp.Width(), bmp.Height(), bmp.Stride())
	}
}

func TestDisposeCascade(t *testing.T) {
	lib, fake := newTestLibrary(t)
	ctx := context.Background()

	doc, err := lib.OpenDocument(ctx, enginetest.SimpleDocument(3, 100, 100), "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	page, err := doc.Page(ctx, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	// Force the text page child into existence.
	if _, err := page.Text(ctx); err != nil {
		t.Fatalf("Text: %v", err)
	}

	if err := lib.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	if fake.OpenObjects() != 0 {
		t.Fatalf("OpenObjects = %d after dispose, want 0", fake.OpenObjects())
	}
	if !fake.Destroyed() {
		t.Fatal("DestroyLibrary not called")
	}
	if got := fake.Arena().ActiveAllocations(); got != 0 {
		t.Fatalf("ActiveAllocations = %d after dispose, want 0", got)
	}

	// Everything below the library is disposed too.
	if err := doc.EnsureActive(); !errors.IsKind(err, errors.KindResourceDisposed) {
		t.Fatalf("document error = %v, want resource_disposed", err)
	}
	if _, _, err := page.Size(ctx); !errors.IsKind(err, errors.KindResourceDisposed) {
		t.Fatalf("page error = %v, want resource_disposed", err)
	}
}

func TestDisposeIdempotent(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	doc, err := lib.OpenDocument(ctx, enginetest.SimpleDocument(1, 100, 100), "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}

	if err := doc.Dispose(); err != nil {
		t.Fatalf("first Dispose: %v", err)
	}
	if err := doc.Dispose(); err != nil {
		t.Fatalf("second Dispose: %v", err)
	}
	if err := lib.Dispose(); err != nil {
		t.Fatalf("library Dispose: %v", err)
	}
	if err := lib.Dispose(); err != nil {
		t.Fatalf("second library Dispose: %v", err)
	}
}

func TestUseAfterDocumentDispose(t *testing.T) {
	lib, _ := newTestLibrary(t)
	defer lib.Dispose()
	ctx := context.Background()

	doc, err := lib.OpenDocument(ctx, enginetest.SimpleDocument(1, 100, 100), "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	if err := doc.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	if _, err := doc.PageCount(ctx); !errors.IsKind(err, errors.KindResourceDisposed) {
		t.Fatalf("PageCount error = %v, want resource_disposed", err)
	}
	if _, err := doc.Page(ctx, 0); !errors.IsKind(err, errors.KindResourceDisposed) {
		t.Fatalf("Page error = %v, want resource_disposed", err)
	}
}

func TestBitmapDisposeDropsData(t *testing.T) {
	bmp := pdf.NewBitmap(2, 2, 8, make([]byte, 16))
	if _, err := bmp.Data(); err != nil {
		t.Fatalf("Data: %v", err)
	}
	if err := bmp.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if _, err := bmp.Data(); !errors.IsKind(err, errors.KindResourceDisposed) {
		t.Fatalf("Data after dispose = %v, want resource_disposed", err)
	}
}

// End-to-end pass mirroring typical embedding use: open, inspect, render,
// tear down, nothing left behind.
func TestEndToEnd(t *testing.T) {
	lib, fake := newTestLibrary(t)
	ctx := context.Background()

	doc, err := lib.OpenDocument(ctx, enginetest.SimpleDocument(4, 612, 792), "")
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	n, err := doc.PageCount(ctx)
	if err != nil || n != 4 {
		t.Fatalf("PageCount = %d, %v; want 4, nil", n, err)
	}

	page, err := doc.Page(ctx, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	bmp, err := page.Render(ctx, pdf.RenderOptions{Scale: 1.5})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if bmp.Width() <= 0 || bmp.Height() <= 0 {
		t.Fatalf("bitmap = %dx%d, want positive", bmp.Width(), bmp.Height())
	}
	pixels, err := bmp.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if len(pixels) != bmp.Width()*bmp.Height()*4 {
		t.Fatalf("len(pixels) = %d, want %d", len(pixels), bmp.Width()*bmp.Height()*4)
	}

	if err := page.Dispose(); err != nil {
		t.Fatalf("page Dispose: %v", err)
	}
	if err := doc.Dispose(); err != nil {
		t.Fatalf("doc Dispose: %v", err)
	}
	if err := lib.Dispose(); err != nil {
		t.Fatalf("lib Dispose: %v", err)
	}

	if fake.OpenObjects() != 0 {
		t.Fatalf("OpenObjects = %d, want 0", fake.OpenObjects())
	}
	if got := fake.Arena().ActiveAllocations(); got != 0 {
		t.Fatalf("ActiveAllocations = %d, want 0", got)
	}
}
