package models

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&User{},
		&Customer{},
		&MenuItem{},
		&DiningTable{},
		&TableSession{},
		&Order{},
		&OrderItem{},
		&Invoice{},
		&Payment{},
		&Promotion{},
		&InvoicePromotion{},
		&SessionMerge{},
		&IdempotencyKey{},
	}
}
