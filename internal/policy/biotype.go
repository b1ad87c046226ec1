package policy

// DefaultBiotypeToken is used when no configured attribute key resolves.
const DefaultBiotypeToken = "unknown"

// BiotypePolicy resolves a gene's biotype by trying a configured ordered
// list of attribute keys, falling back to a default token.
type BiotypePolicy struct {
	LookupOrder  []string
	DefaultToken string
}

// DefaultBiotypePolicy returns the standard GFF3/GTF lookup order.
func DefaultBiotypePolicy() BiotypePolicy {
	return BiotypePolicy{
		LookupOrder:  []string{"gene_biotype", "biotype", "transcript_biotype"},
		DefaultToken: DefaultBiotypeToken,
	}
}

// Resolve returns the biotype for attrs.
func (p BiotypePolicy) Resolve(attrs map[string]string) string {
	for _, key := range p.LookupOrder {
		if v, ok := attrs[key]; ok && v != "" {
			return v
		}
	}
	token := p.DefaultToken
	if token == "" {
		token = DefaultBiotypeToken
	}
	return token
}
