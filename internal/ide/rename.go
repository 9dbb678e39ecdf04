package ide

// Edit is one textual substitution: replace the exact span Range with
// NewText, entirely within File.
type Edit struct {
	Location
	NewText string
}

// Rename computes every Edit needed to rename the identifier at (file,
// offset) to newName: its declaration plus every reference found by
// References (spec §9 "rename touches every reference across the
// workspace, including the declaration").
func (w *Workspace) Rename(file string, offset int, newName string) []Edit {
	locs := w.References(file, offset)
	edits := make([]Edit, 0, len(locs))
	for _, loc := range locs {
		edits = append(edits, Edit{Location: loc, NewText: newName})
	}
	return edits
}
