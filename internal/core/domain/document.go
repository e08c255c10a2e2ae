package domain

// Document is the loaded form of one source document.
// It exists only for the duration of a single ingestion run.
type Document struct {
	// SourceID identifies the source the document was loaded from.
	SourceID string

	// URI is the original location (file path).
	URI string

	// Units are the logical divisions of the document in source order.
	Units []Unit
}

// Unit is one logical division of a document, typically a page.
type Unit struct {
	// Text is the raw text of the unit.
	Text string

	// Metadata locates the unit within its document.
	Metadata UnitMetadata
}

// UnitMetadata carries the positional metadata of a Unit.
type UnitMetadata struct {
	// SourceID links the unit to its document.
	SourceID string

	// Position is the zero-based index of the unit in load order.
	Position int
}

// TextLength returns the total number of characters across all units.
func (d *Document) TextLength() int {
	total := 0
	for i := range d.Units {
		total += RuneLen(d.Units[i].Text)
	}
	return total
}
