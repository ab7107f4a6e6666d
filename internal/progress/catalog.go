package progress

import "github.com/noah-isme/progress-dashboard/internal/models"

// ItemLabelMode selects how item sequence labels are produced.
type ItemLabelMode string

const (
	// ItemLabelOrdinal numbers items by first-seen order within the catalog scope.
	ItemLabelOrdinal ItemLabelMode = "ordinal"
	// ItemLabelPosition uses the authored items_position, falling back to the ordinal
	// for items that carry no position.
	ItemLabelPosition ItemLabelMode = "position"
)

// ParseItemLabelMode maps a config value to a mode; unknown values select ItemLabelPosition.
func ParseItemLabelMode(raw string) ItemLabelMode {
	if ItemLabelMode(raw) == ItemLabelOrdinal {
		return ItemLabelOrdinal
	}
	return ItemLabelPosition
}

// Catalog holds the id→label maps derived from one subset of events. Ordinals are
// presentation sequence numbers: building a catalog over a different subset reassigns
// them from 1.
type Catalog struct {
	Courses  Labels
	Modules  Labels
	Items    Labels
	Students Labels

	ModuleOrdinals Labels
	ItemOrdinals   Labels
	ItemPositions  Labels
}

// BuildCatalog derives a Catalog from events in a single pass. Empty input yields
// empty maps.
func BuildCatalog(events []models.ProgressEvent) Catalog {
	var c Catalog
	for _, e := range events {
		c.Courses.set(e.CourseID, e.CourseName)
		c.Modules.set(e.ModuleID, StripModulePrefix(e.ModuleName))
		c.Items.set(e.ItemID, e.ItemTitle)
		c.Students.set(e.StudentID, e.StudentName)
		if e.ItemPosition > 0 {
			c.ItemPositions.set(e.ItemID, ItemOrdinal(e.ItemPosition))
		}
	}
	c.ModuleOrdinals = enumerate(c.Modules, ModuleOrdinal)
	c.ItemOrdinals = enumerate(c.Items, ItemOrdinal)
	return c
}

// ModuleLabel returns the "Module k:" label of a module, or "" when unknown.
func (c Catalog) ModuleLabel(moduleID string) string {
	return c.ModuleOrdinals.Label(moduleID)
}

// ItemLabel returns the item label under the requested numbering mode, or "" when unknown.
func (c Catalog) ItemLabel(itemID string, mode ItemLabelMode) string {
	if mode == ItemLabelPosition {
		if label, ok := c.ItemPositions.Get(itemID); ok {
			return label
		}
	}
	return c.ItemOrdinals.Label(itemID)
}
