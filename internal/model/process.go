package model

const unknownField = "unknown"

// ProcessRecord is the subset of a managed process entry the harness reports.
type ProcessRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (p ProcessRecord) DisplayID() string     { return orUnknown(p.ID) }
func (p ProcessRecord) DisplayName() string   { return orUnknown(p.Name) }
func (p ProcessRecord) DisplayStatus() string { return orUnknown(p.Status) }

func orUnknown(v string) string {
	if v == "" {
		return unknownField
	}
	return v
}
