package htmlinline

import (
	"fmt"

	"github.com/beevik/etree"
)

// parseSVG reads an SVG document for fragment lookups.
func parseSVG(text string) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromString(text); err != nil {
		return nil, fmt.Errorf("parsing svg: %w", err)
	}
	return doc, nil
}

// findByID returns the first element, in document order, whose id is id.
func findByID(el *etree.Element, id string) *etree.Element {
	if el.SelectAttrValue("id", "") == id {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// extractSVG renders the element with the given id, completed with the extra
// attributes of the referencing <use>. Attributes already on the element
// keep their value. It returns false when the id does not exist.
func extractSVG(doc *etree.Document, id string, extra []attr) (string, bool, error) {
	if id == "" {
		return "", false, nil
	}
	var found *etree.Element
	for _, el := range doc.ChildElements() {
		if found = findByID(el, id); found != nil {
			break
		}
	}
	if found == nil {
		return "", false, nil
	}

	el := found.Copy()
	for _, a := range extra {
		if el.SelectAttr(a.key) == nil {
			el.CreateAttr(a.key, a.val)
		}
	}

	out := etree.NewDocument()
	out.SetRoot(el)
	s, err := out.WriteToString()
	if err != nil {
		return "", false, fmt.Errorf("rendering svg element %q: %w", id, err)
	}
	return s, true, nil
}
