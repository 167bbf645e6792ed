package domain

// Token is a minted ownership token. IDs are assigned by the registry in
// strictly increasing order starting at 1 and are never reused.
type Token struct {
	ID     int64    `json:"id"`
	URI    string   `json:"uri"`
	Holder Identity `json:"holder"`
}
