package models

// LinkedEntity is the compact projection of a previously generated entity
// included in prompts: its id plus a few identifying display fields.
type LinkedEntity struct {
	ID      string
	Display map[string]string
}

// LinkedContext is an ordered, bounded slice of linked entities. It is
// read-only from the generation pipeline's point of view.
type LinkedContext []LinkedEntity

// IDSet returns the set of ids present in the context, used to validate
// foreign-key values on generated records.
func (c LinkedContext) IDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(c))
	for _, e := range c {
		ids[e.ID] = struct{}{}
	}
	return ids
}
