// AngelaMos | 2026
// mapper.go

package user

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toUser(row Row, qual *QualificationRow, docs []DocumentRow) User {
	u := User{
		ID:         row.ID,
		Email:      row.Email,
		Name:       row.Name,
		Role:       Role(row.Role),
		ClientType: ClientType(deref(row.ClientType)),
		AvatarURL:  deref(row.AvatarURL),
		Documents:  make([]Document, 0, len(docs)),
		CreatedAt:  row.CreatedAt,
	}

	if qual != nil {
		u.Qualification = toQualification(*qual)
	}

	for _, d := range docs {
		u.Documents = append(u.Documents, Document{
			ID:         d.ID,
			Name:       d.Name,
			URL:        d.URL,
			UploadedAt: d.UploadedAt,
		})
	}

	return u
}

func toQualification(q QualificationRow) *Qualification {
	return &Qualification{
		MaritalStatus:  deref(q.MaritalStatus),
		PropertyRegime: deref(q.PropertyRegime),
		Nationality:    deref(q.Nationality),
		BirthDate:      q.BirthDate,
		Profession:     deref(q.Profession),
		CPF:            deref(q.CPF),
		RG:             deref(q.RG),
		Address:        deref(q.Address),
		Phone:          deref(q.Phone),
		SpouseName:     deref(q.SpouseName),
	}
}

func fromQualification(userID string, q Qualification) QualificationRow {
	return QualificationRow{
		UserID:         userID,
		MaritalStatus:  optional(q.MaritalStatus),
		PropertyRegime: optional(q.PropertyRegime),
		Nationality:    optional(q.Nationality),
		BirthDate:      q.BirthDate,
		Profession:     optional(q.Profession),
		CPF:            optional(q.CPF),
		RG:             optional(q.RG),
		Address:        optional(q.Address),
		Phone:          optional(q.Phone),
		SpouseName:     optional(q.SpouseName),
	}
}

func fromUser(u *User) Row {
	return Row{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       string(u.Role),
		ClientType: optional(string(u.ClientType)),
		AvatarURL:  optional(u.AvatarURL),
	}
}

// assemble joins the per-table result sets in memory, keyed by user id.
func assemble(rows []Row, quals []QualificationRow, docs []DocumentRow) []User {
	qualByUser := make(map[string]*QualificationRow, len(quals))
	for i := range quals {
		qualByUser[quals[i].UserID] = &quals[i]
	}

	docsByUser := make(map[string][]DocumentRow)
	for _, d := range docs {
		docsByUser[d.UserID] = append(docsByUser[d.UserID], d)
	}

	users := make([]User, 0, len(rows))
	for _, row := range rows {
		users = append(users, toUser(row, qualByUser[row.ID], docsByUser[row.ID]))
	}

	return users
}
