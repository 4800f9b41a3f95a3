package models

// Room is a physical room usable for classes and admission exams.
type Room struct {
	ID       string `db:"id" json:"id"`
	Number   int    `db:"number" json:"number"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
}
