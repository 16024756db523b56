package model

// All lists every table owned by the service, parents first.
func All() []interface{} {
	return []interface{}{
		&Document{},
		&Chapter{},
		&Figure{},
		&Knowledge{},
		&Card{},
		&SRSRecord{},
	}
}
