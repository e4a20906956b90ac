package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/copy-catalog/constants"
	"github.com/joseph-ayodele/copy-catalog/internal/superscript"
)

const (
	docxBody      = "word/document.xml"
	docxFootnotes = "word/footnotes.xml"
)

// extractDOCX reads the body of a Word document. Runs formatted as
// superscript become Unicode superscript digits, footnote references become
// their ordinal in superscript, and footnote texts are appended at the end,
// each on its own line starting with its superscript ordinal.
func extractDOCX(data []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, corrupt(constants.DOCX, err)
	}

	body, err := readZipEntry(zr, docxBody)
	if err != nil {
		return Result{}, corrupt(constants.DOCX, err)
	}

	w := &docxWalker{ordinals: map[string]int{}}
	if err := w.walk(body); err != nil {
		return Result{}, corrupt(constants.DOCX, err)
	}
	text := w.out.String()

	var warns []string
	if len(w.ordinals) > 0 {
		notes, err := readZipEntry(zr, docxFootnotes)
		if err != nil {
			warns = append(warns, fmt.Sprintf("footnotes: %v", err))
		} else {
			legal, err := footnoteTexts(notes, w.ordinals)
			if err != nil {
				warns = append(warns, fmt.Sprintf("footnotes: %v", err))
			}
			if legal != "" {
				text += "\n\n" + legal
			}
		}
	}
	return Result{Text: text, Pages: 1, Method: "docx-xml", Warnings: warns}, nil
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("missing %s", name)
}

// docxWalker flattens WordprocessingML into text.
type docxWalker struct {
	out      strings.Builder
	ordinals map[string]int // footnote id -> order of first reference
}

func (w *docxWalker) walk(doc []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	var (
		inText bool
		raised bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				raised = false
			case "vertAlign":
				raised = attr(t, "val") == "superscript"
			case "t":
				inText = true
			case "tab":
				w.out.WriteByte('\t')
			case "br", "cr":
				w.out.WriteByte('\n')
			case "footnoteReference":
				id := attr(t, "id")
				n, ok := w.ordinals[id]
				if !ok {
					n = len(w.ordinals) + 1
					w.ordinals[id] = n
				}
				w.out.WriteString(superscript.Raise(strconv.Itoa(n)))
			case "footnoteRef":
				// rendered by footnoteTexts
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				raised = false
			case "p":
				w.out.WriteByte('\n')
			case "tc":
				w.out.WriteByte('\t')
			}
		case xml.CharData:
			if !inText {
				continue
			}
			s := string(t)
			if raised {
				s = superscript.Raise(s)
			}
			w.out.WriteString(s)
		}
	}
}

// footnoteTexts renders the referenced footnotes in reference order.
func footnoteTexts(doc []byte, ordinals map[string]int) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	texts := map[string]*docxWalker{}
	var (
		current string
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "footnote":
				current = attr(t, "id")
				if _, ok := ordinals[current]; ok {
					texts[current] = &docxWalker{}
				}
			case "t":
				inText = true
			case "tab":
				if fw := texts[current]; fw != nil {
					fw.out.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if fw := texts[current]; fw != nil {
					fw.out.WriteByte(' ')
				}
			case "footnote":
				current = ""
			}
		case xml.CharData:
			if fw := texts[current]; fw != nil && inText {
				fw.out.Write(t)
			}
		}
	}

	ids := make([]string, 0, len(texts))
	for id := range texts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ordinals[ids[i]] < ordinals[ids[j]] })

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		body := strings.Join(strings.Fields(texts[id].out.String()), " ")
		lines = append(lines, superscript.Raise(strconv.Itoa(ordinals[id]))+" "+body)
	}
	return strings.Join(lines, "\n"), nil
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
