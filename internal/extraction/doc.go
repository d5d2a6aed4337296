// Package extraction turns uploaded document bytes into plain text.
//
// Word documents are read from word/document.xml inside the OOXML zip; HTML
// is stripped to its readable text; text-like formats (plain, markdown,
// JSON, CSV, source code) are decoded as UTF-8. The MIME type is taken from
// the caller when given, then from the file extension, then sniffed.
package extraction
