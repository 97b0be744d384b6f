package models

// PersonOwner is the ownership view of a cataloged person record
type PersonOwner struct {
	PersonID   string
	PersonName string
	OwnerID    string
}
