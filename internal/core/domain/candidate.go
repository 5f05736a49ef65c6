package domain

// CandidateRecord is one resolved catalog entry. The JSON field names
// form the wire contract of the results subtree in the event store.
type CandidateRecord struct {
	CatalogID   string `json:"catalog_id"`
	DisplayName string `json:"display_name"`
	Company     string `json:"company"`
	Appearance  string `json:"appearance"`
	DosageForm  string `json:"dosage_form"`
	ImageKey    string `json:"image_key"`
}

// IdentifierEntry is a row of the compact identifier table consulted in
// the first stage of the cascade.
type IdentifierEntry struct {
	Name       string
	ImageKey   string
	Material   string
	ClassCode  string
	Appearance string
}

// CatalogEntry is the slice of a full catalog row that feeds the
// published CandidateRecord. The table carries many more columns; they
// serve the read API that shares this database.
type CatalogEntry struct {
	ID           string
	DisplayName  string
	Company      string
	Appearance   string
	FormCodeName string
	ImageKey     string
}
