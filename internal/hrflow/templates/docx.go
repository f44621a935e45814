package templates

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`

	packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`

	documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

	documentHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	documentTail = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`
)

var tokenPattern = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

type style int

const (
	styleBody style = iota
	styleTitle
	styleHeading
	styleCentered
	styleRight
	styleNote
)

type paragraph struct {
	text  string
	style style
}

func p(text string) paragraph       { return paragraph{text: text} }
func heading(text string) paragraph { return paragraph{text: text, style: styleHeading} }
func blank() paragraph              { return paragraph{} }

// renderDocx packs the paragraphs into a minimal WordprocessingML archive
// and returns the distinct tokens in order of first appearance.
func renderDocx(paragraphs []paragraph) ([]byte, []string, error) {
	var body strings.Builder
	body.WriteString(documentHead)

	seen := map[string]bool{}
	var tokens []string
	for _, para := range paragraphs {
		writeParagraph(&body, para, func(tok string) {
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		})
	}
	body.WriteString(documentTail)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, content string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/document.xml", body.String()},
		{"word/_rels/document.xml.rels", documentRelsXML},
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, nil, fmt.Errorf("create %s: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, nil, fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), tokens, nil
}

// writeParagraph emits literal text in formatted runs and every token in a
// run of its own with no run properties, so the token text is never split.
func writeParagraph(b *strings.Builder, para paragraph, onToken func(string)) {
	b.WriteString("<w:p>")
	switch para.style {
	case styleTitle, styleCentered:
		b.WriteString(`<w:pPr><w:jc w:val="center"/></w:pPr>`)
	case styleRight:
		b.WriteString(`<w:pPr><w:jc w:val="right"/></w:pPr>`)
	}

	text := para.text
	for len(text) > 0 {
		loc := tokenPattern.FindStringSubmatchIndex(text)
		if loc == nil {
			writeRun(b, text, para.style)
			break
		}
		if loc[0] > 0 {
			writeRun(b, text[:loc[0]], para.style)
		}
		onToken(text[loc[2]:loc[3]])
		writeRun(b, text[loc[0]:loc[1]], styleBody)
		text = text[loc[1]:]
	}
	b.WriteString("</w:p>")
}

func writeRun(b *strings.Builder, text string, st style) {
	b.WriteString("<w:r>")
	switch st {
	case styleTitle:
		b.WriteString(`<w:rPr><w:b/><w:sz w:val="32"/><w:color w:val="E8590C"/></w:rPr>`)
	case styleHeading:
		b.WriteString(`<w:rPr><w:b/><w:sz w:val="24"/><w:color w:val="E8590C"/></w:rPr>`)
	case styleNote:
		b.WriteString(`<w:rPr><w:i/><w:sz w:val="18"/><w:color w:val="666666"/></w:rPr>`)
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(b, []byte(text))
	b.WriteString("</w:t></w:r>")
}
