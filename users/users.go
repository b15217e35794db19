package users

import "strings"

// Type represents the account role the platform encodes as a single letter
// inside card records.
type Type string

const (
	TypeStudent Type = "student"
	TypeParent  Type = "parent"
	TypeTeacher Type = "teacher"
	TypeAdmin   Type = "admin"
)

// TypeFromCode maps the platform's one-letter account code to a Type.
// Unrecognised codes fall back to TypeStudent.
func TypeFromCode(code string) Type {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "S":
		return TypeStudent
	case "G", "X":
		return TypeParent
	case "D":
		return TypeTeacher
	case "A":
		return TypeAdmin
	}
	return TypeStudent
}

// School describes the institution an account belongs to. It stays empty
// until a card fetch has succeeded at least once.
type School struct {
	Name       string `json:"name,omitempty"`       // Official school name
	Dedication string `json:"dedication,omitempty"` // Dedication line ("I.C. ...")
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	Code       string `json:"code,omitempty"` // Ministry school code, required by the contents host
}

// User is the profile attached to an authenticated session. Login populates
// Name, Surname, ID and Ident; a later card fetch fills Type and School.
type User struct {
	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`
	ID      string `json:"id,omitempty"`    // Numeric id: the digit run of Ident
	Ident   string `json:"ident,omitempty"` // Full alphanumeric account identifier
	Type    Type   `json:"type,omitempty"`
	School  School `json:"school,omitempty"`
}

// Card is the slice of the card endpoint's payload that gets projected into
// the profile.
type Card struct {
	Ident            string `json:"ident"`
	UserType         string `json:"usrType"`
	UserID           int64  `json:"usrId"`
	SchoolName       string `json:"schName"`
	SchoolDedication string `json:"schDedication"`
	SchoolCity       string `json:"schCity"`
	SchoolProvince   string `json:"schProv"`
	SchoolCode       string `json:"schCode"`
}

// ApplyCard projects the five school descriptor fields into the profile and
// resolves the account type from the one-letter code.
func (u *User) ApplyCard(c Card) {
	u.School = School{
		Name:       c.SchoolName,
		Dedication: c.SchoolDedication,
		City:       c.SchoolCity,
		Province:   c.SchoolProvince,
		Code:       c.SchoolCode,
	}
	u.Type = TypeFromCode(c.UserType)
}
