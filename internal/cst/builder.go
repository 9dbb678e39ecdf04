package cst

// NewNode constructs a node spanning token indices [startTok,
// endTokInclusive] with the given children. Parser call sites record
// startTok before parsing a construct and endTokInclusive as the index
// of the last token they consumed, so node ranges always fall out of
// actual token consumption rather than being computed by hand.
func NewNode(kind Kind, startTok, endTokInclusive int, children ...*Node) *Node {
	return &Node{Kind: kind, StartTok: startTok, EndTok: endTokInclusive, Children: children}
}

// NewLeaf constructs a childless node spanning a single token.
func NewLeaf(kind Kind, tokIdx int) *Node {
	return &Node{Kind: kind, StartTok: tokIdx, EndTok: tokIdx}
}
