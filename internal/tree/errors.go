package tree

import "fmt"

// InvalidTreeStructure reports the first structural violation found while
// validating a vtxo or connectors tree, naming the offending node.
type InvalidTreeStructure struct {
	Level  int
	Index  int
	Reason string
}

func (e *InvalidTreeStructure) Error() string {
	return fmt.Sprintf("tree: invalid structure at (level=%d, index=%d): %s", e.Level, e.Index, e.Reason)
}

func invalid(level, index int, format string, args ...interface{}) error {
	return &InvalidTreeStructure{Level: level, Index: index, Reason: fmt.Sprintf(format, args...)}
}
