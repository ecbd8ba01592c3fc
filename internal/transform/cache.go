package transform

// ServiceCache is the ordered set of raw services fetched at the start of a
// run. It is filled once and only read afterwards.
type ServiceCache []RawEntity

// LookupID returns the id of the first cached service named name, or nil
// when none matches.
func (c ServiceCache) LookupID(name string) *string {
	for _, s := range c {
		if s.Name != nil && *s.Name == name {
			return s.ID
		}
	}
	return nil
}
