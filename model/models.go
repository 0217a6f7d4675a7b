package model

// AllModels lists every table owned by this service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Company{},
		&CompanyMention{},
		&UserFollowing{},
		&Content{},
		&AICacheEntry{},
		&CostLog{},
	}
}
