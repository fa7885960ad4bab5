package extracthtml

// FieldNodes pairs a rule with the nodes it resolved to.
type FieldNodes struct {
	Rule  FieldRule
	Nodes []MatchedNode
}

// Align builds rows by position: row i holds the i-th node of every field
// that has one. Fields are not correlated by DOM proximity, so fields whose
// match counts differ for structural reasons can pair unrelated nodes.
// Rows with no keys are dropped.
func Align(fields []FieldNodes, opts Options) []Row {
	depth := 0
	for _, f := range fields {
		if len(f.Nodes) > depth {
			depth = len(f.Nodes)
		}
	}

	rows := make([]Row, 0, depth)
	for i := 0; i < depth; i++ {
		row := NewRow()
		for _, f := range fields {
			if i >= len(f.Nodes) {
				continue
			}
			n := f.Nodes[i]
			v := Extract(n, f.Rule)
			row.Set(f.Rule.Name, v.Value)

			if opts.IncludeMetadata {
				row.Set(MetaKey(f.Rule.Name), FieldMeta{
					Selector: v.Selector,
					XPath:    v.XPath,
					Attr:     optional(v.Attr),
					Type:     v.Type,
				})
			}
			if opts.IncludeOuterHTML {
				row.Set(OuterKey(f.Rule.Name), n.Element.OuterHTML())
			}
		}
		if row.Len() == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
