package store

// Table is the benchmark's target table.
const Table = "contacts"

const (
	InsertContact = "INSERT INTO contacts (name, email) VALUES (?, ?)"
	DeleteAll     = "DELETE FROM contacts"
	SelectByEmail = "SELECT name FROM contacts WHERE email = ?"
)
