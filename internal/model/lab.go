package model

// Lab is reference data; the core only reads it.
type Lab struct {
	ID    string  `json:"id" db:"id"`
	Name  string  `json:"name" db:"name"`
	Email *string `json:"email,omitempty" db:"email"`
	Phone *string `json:"phone,omitempty" db:"phone"`
}

func (l *Lab) Clone() *Lab {
	if l == nil {
		return nil
	}
	cp := *l
	if l.Email != nil {
		e := *l.Email
		cp.Email = &e
	}
	if l.Phone != nil {
		p := *l.Phone
		cp.Phone = &p
	}
	return &cp
}

func (l *Lab) EmailOrEmpty() string {
	if l == nil || l.Email == nil {
		return ""
	}
	return *l.Email
}

func (l *Lab) PhoneOrEmpty() string {
	if l == nil || l.Phone == nil {
		return ""
	}
	return *l.Phone
}
