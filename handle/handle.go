// Package handle defines opaque typed handles for the engine's object
// categories.
//
// Every handle is a plain uint32 at the binary boundary, but each category
// is a distinct Go type, so a Page cannot be passed where a Document is
// expected even though both compile to the same machine representation.
// Zero is the canonical "no object" sentinel for every category and must
// never reach a native call.
package handle

// Document references an open document in the engine's object table.
type Document uint32

// Page references a loaded page.
type Page uint32

// Bitmap references a render target bitmap.
type Bitmap uint32

// FormEnv references a form-fill environment.
type FormEnv uint32

// TextPage references the text extraction state of a page.
type TextPage uint32

// Search references an active text search cursor.
type Search uint32

// Bookmark references a node in the document outline.
type Bookmark uint32

// Dest references a named or explicit destination.
type Dest uint32

// Attachment references an embedded file.
type Attachment uint32

// StructTree references a page's structure tree.
type StructTree uint32

// StructElement references an element inside a structure tree.
type StructElement uint32

// Font references a loaded font.
type Font uint32

// Annotation references a page annotation.
type Annotation uint32

// Link references a link annotation.
type Link uint32

// Action references an action attached to a link or bookmark.
type Action uint32

// ClipPath references a page object clip path.
type ClipPath uint32

// PathSegment references a segment inside a path object.
type PathSegment uint32

// PageObject references an object in a page's content.
type PageObject uint32

// ObjectMark references a content mark on a page object.
type ObjectMark uint32

func (h Document) IsNull() bool      { return h == 0 }
func (h Page) IsNull() bool          { return h == 0 }
func (h Bitmap) IsNull() bool        { return h == 0 }
func (h FormEnv) IsNull() bool       { return h == 0 }
func (h TextPage) IsNull() bool      { return h == 0 }
func (h Search) IsNull() bool        { return h == 0 }
func (h Bookmark) IsNull() bool      { return h == 0 }
func (h Dest) IsNull() bool          { return h == 0 }
func (h Attachment) IsNull() bool    { return h == 0 }
func (h StructTree) IsNull() bool    { return h == 0 }
func (h StructElement) IsNull() bool { return h == 0 }
func (h Font) IsNull() bool          { return h == 0 }
func (h Annotation) IsNull() bool    { return h == 0 }
func (h Link) IsNull() bool          { return h == 0 }
func (h Action) IsNull() bool        { return h == 0 }
func (h ClipPath) IsNull() bool      { return h == 0 }
func (h PathSegment) IsNull() bool   { return h == 0 }
func (h PageObject) IsNull() bool    { return h == 0 }
func (h ObjectMark) IsNull() bool    { return h == 0 }
